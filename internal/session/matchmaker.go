package session

import (
	"context"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// PairFunc receives two players taken from the front of the queue.
type PairFunc func(ctx context.Context, p0, p1 *PlayerSession)

// Matchmaker pairs waiting players in arrival order. The queue is owned by
// the Run goroutine; other goroutines talk to it through channels.
type Matchmaker struct {
	queue []*PlayerSession

	enqueue chan *PlayerSession
	dequeue chan *PlayerSession
	waiting atomic.Int64

	pair   PairFunc
	logger hclog.Logger
}

func NewMatchmaker(pair PairFunc, logger hclog.Logger) *Matchmaker {
	return &Matchmaker{
		queue:   make([]*PlayerSession, 0),
		enqueue: make(chan *PlayerSession),
		dequeue: make(chan *PlayerSession),
		pair:    pair,
		logger:  logger.Named("matchmaker"),
	}
}

// Run serves the queue until ctx is cancelled, then closes every player
// still waiting.
func (m *Matchmaker) Run(ctx context.Context) {
	m.logger.Info("matchmaker started")
	defer func() {
		for _, p := range m.queue {
			p.Close()
		}
		m.queue = nil
		m.waiting.Store(0)
		m.logger.Info("matchmaker stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case p := <-m.enqueue:
			m.queue = append(m.queue, p)
			m.logger.Debug("player queued", "player", p.Name, "remote", p.RemoteAddr(), "queued", len(m.queue))
			m.pruneDisconnected()

			if len(m.queue) >= 2 {
				p0, p1 := m.queue[0], m.queue[1]
				m.queue = m.queue[2:]
				p0.markPaired()
				p1.markPaired()
				m.logger.Info("match found", "player0", p0.Name, "player1", p1.Name, "queued", len(m.queue))
				m.pair(ctx, p0, p1)
			}
			m.waiting.Store(int64(len(m.queue)))

		case leaving := <-m.dequeue:
			m.remove(leaving)
			m.waiting.Store(int64(len(m.queue)))
		}
	}
}

func (m *Matchmaker) remove(leaving *PlayerSession) {
	for i, p := range m.queue {
		if p == leaving {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			p.Close()
			m.logger.Debug("player left queue", "player", p.Name, "queued", len(m.queue))
			return
		}
	}
}

// pruneDisconnected drops queued players whose connection already failed, so
// a hang-up that Leave has not reported yet never reaches a session.
func (m *Matchmaker) pruneDisconnected() {
	alive := m.queue[:0]
	for _, p := range m.queue {
		select {
		case <-p.Done():
			p.Close()
			m.logger.Debug("dropping disconnected player", "player", p.Name)
		default:
			alive = append(alive, p)
		}
	}
	clear(m.queue[len(alive):])
	m.queue = alive
}

// Enqueue adds a player to the back of the queue.
func (m *Matchmaker) Enqueue(ctx context.Context, p *PlayerSession) error {
	select {
	case m.enqueue <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave removes and closes a player that has not been paired yet. It is a
// no-op for players already paired.
func (m *Matchmaker) Leave(ctx context.Context, p *PlayerSession) error {
	select {
	case m.dequeue <- p:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Waiting is the number of queued players.
func (m *Matchmaker) Waiting() int {
	return int(m.waiting.Load())
}
