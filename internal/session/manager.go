package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"roulette/internal/events"
	"roulette/internal/game/duel"
)

// Manager starts a Session for every pair the matchmaker produces and keeps
// track of the ones still running.
type Manager struct {
	cfg       Config
	opts      []Option
	publisher events.Publisher
	logger    hclog.Logger

	mu     sync.Mutex
	active map[string]*Session
	wg     sync.WaitGroup

	// done, when set, observes every finished session.
	done func(id string, res Result, err error)
}

func NewManager(cfg Config, publisher events.Publisher, logger hclog.Logger, opts ...Option) *Manager {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{
		cfg:       cfg,
		opts:      opts,
		publisher: publisher,
		logger:    logger.Named("manager"),
		active:    make(map[string]*Session),
	}
}

// Start runs a new session for p0 and p1 on its own goroutine and returns its ID.
// If the session cannot be created, or ctx is already done, both connections
// are closed. Start must not be called once Wait has begun.
func (m *Manager) Start(ctx context.Context, p0, p1 *PlayerSession) (string, error) {
	if err := ctx.Err(); err != nil {
		p0.Close()
		p1.Close()
		return "", err
	}
	id := uuid.NewString()
	s, err := New(id, p0, p1, m.cfg, m.logger, m.opts...)
	if err != nil {
		m.logger.Error("cannot create session", "session_id", id, "error", err)
		p0.Close()
		p1.Close()
		return "", err
	}

	m.mu.Lock()
	m.active[id] = s
	m.mu.Unlock()
	m.publish(ctx, events.Event{Kind: events.KindStarted, SessionID: id, Players: names(s)})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		res, err := s.Run(ctx)

		m.mu.Lock()
		delete(m.active, id)
		m.mu.Unlock()

		e := events.Event{Kind: events.KindFinished, SessionID: id, Players: names(s), Reason: string(res.Reason)}
		if res.Winner != duel.NoWinner {
			e.Winner = s.players[res.Winner].Name
		}
		if err != nil {
			e.Kind = events.KindAborted
		}
		// Publish on a fresh context: a shutdown must still report the abort.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		m.publish(pubCtx, e)
		cancel()

		if m.done != nil {
			m.done(id, res, err)
		}
	}()
	return id, nil
}

// Pair adapts Start to the matchmaker's callback.
func (m *Manager) Pair(ctx context.Context, p0, p1 *PlayerSession) {
	m.Start(ctx, p0, p1)
}

// Active is the number of running sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Wait blocks until every started session has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// OnDone registers a callback for finished sessions. It must be set before
// the first Start.
func (m *Manager) OnDone(f func(id string, res Result, err error)) {
	m.done = f
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	e.At = time.Now().UTC()
	if err := m.publisher.Publish(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn("event not published", "kind", e.Kind, "session_id", e.SessionID, "error", err)
	}
}

func names(s *Session) []string {
	n := s.Names()
	return n[:]
}
