package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"roulette/internal/network"
)

var (
	// ErrConnectionLost means a peer disconnected or its socket failed.
	ErrConnectionLost = errors.New("connection lost")

	// ErrTurnTimeout means the current player stayed silent past the turn timeout.
	ErrTurnTimeout = errors.New("turn timed out")

	errClosed = errors.New("player session closed")
)

// PlayerSession is a named peer waiting for, or playing in, a duel. It owns
// its connection exclusively: one goroutine reads it for the whole life of
// the player and hands complete batches to Receive.
type PlayerSession struct {
	Name string
	conn *network.LineConn

	batches chan []string
	// done is closed once the reader stops; readErr says why.
	done    chan struct{}
	readErr error

	paired chan struct{}
	closed chan struct{}

	pairOnce  sync.Once
	closeOnce sync.Once
}

func NewPlayerSession(name string, conn *network.LineConn) *PlayerSession {
	p := &PlayerSession{
		Name:    name,
		conn:    conn,
		batches: make(chan []string),
		done:    make(chan struct{}),
		paired:  make(chan struct{}),
		closed:  make(chan struct{}),
	}
	go p.read()
	return p
}

func (p *PlayerSession) read() {
	defer close(p.done)
	for {
		lines, err := p.conn.ReadLines()
		if err != nil {
			p.readErr = err
			return
		}
		select {
		case p.batches <- lines:
		case <-p.closed:
			p.readErr = errClosed
			return
		}
	}
}

func (p *PlayerSession) RemoteAddr() string {
	if a := p.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// Done is closed when the connection can no longer be read.
func (p *PlayerSession) Done() <-chan struct{} {
	return p.done
}

// Paired is closed when the matchmaker takes the player out of the queue.
func (p *PlayerSession) Paired() <-chan struct{} {
	return p.paired
}

func (p *PlayerSession) markPaired() {
	p.pairOnce.Do(func() { close(p.paired) })
}

// Send writes one protocol message. Failures are not retried.
func (p *PlayerSession) Send(m network.Message) error {
	if err := p.conn.WriteMessage(m); err != nil {
		return fmt.Errorf("%w: send %s to %s: %v", ErrConnectionLost, m.Op, p.Name, err)
	}
	return nil
}

// Receive blocks until at least one line has arrived and returns everything
// received so far as one batch. A zero timeout waits forever.
func (p *PlayerSession) Receive(timeout time.Duration) ([]string, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case lines := <-p.batches:
		for {
			select {
			case more := <-p.batches:
				lines = append(lines, more...)
			default:
				return lines, nil
			}
		}
	case <-p.done:
		return nil, fmt.Errorf("%w: receive from %s: %v", ErrConnectionLost, p.Name, p.readErr)
	case <-expired:
		return nil, fmt.Errorf("%w: %s", ErrTurnTimeout, p.Name)
	}
}

// Close is safe to call more than once.
func (p *PlayerSession) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}
