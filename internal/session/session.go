package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"roulette/internal/game/chamber"
	"roulette/internal/game/duel"
	"roulette/internal/game/player"
	"roulette/internal/network"
)

// Config holds the rules of every duel a server runs.
type Config struct {
	ChamberCapacity int
	LiveRounds      int
	MaxLife         int

	// TurnTimeout of zero lets the current player think forever.
	TurnTimeout time.Duration
	// ReloadOnEmpty replaces an exhausted chamber instead of aborting the duel.
	ReloadOnEmpty bool
	// ForfeitOnDisconnect tells the surviving peer it won when the other drops.
	ForfeitOnDisconnect bool
}

type Reason string

const (
	ReasonEliminated Reason = "eliminated"
	ReasonTimeout    Reason = "turn-timeout"
	ReasonDisconnect Reason = "disconnect"
	ReasonError      Reason = "error"
)

// Result is how a session ended. Winner is duel.NoWinner when it was abandoned.
type Result struct {
	Winner int
	Reason Reason
}

type Option func(*Session)

// WithChamberSource overrides how chambers are built, the first one included.
func WithChamberSource(src func() (*chamber.Chamber, error)) Option {
	return func(s *Session) {
		s.source = src
	}
}

// WithRand sets the random source used for chamber loading.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) {
		s.rng = rng
	}
}

// queued is an action decoded from a batch, tagged with the turn it was
// received under.
type queued struct {
	turn   int
	action duel.Action
	line   string
}

// Session drives one duel between two connected players. A single goroutine
// calls Run; nothing in a Session is shared with other sessions.
type Session struct {
	ID      string
	players [2]*PlayerSession
	duel    *duel.Duel
	cfg     Config
	logger  hclog.Logger

	rng    *rand.Rand
	source func() (*chamber.Chamber, error)

	closeOnce sync.Once
}

// New pairs two players into a ready session. Chamber parameters are checked
// here; a failure is chamber.ErrInvalidConfiguration.
func New(id string, p0, p1 *PlayerSession, cfg Config, logger hclog.Logger, opts ...Option) (*Session, error) {
	s := &Session{
		ID:      id,
		players: [2]*PlayerSession{p0, p1},
		cfg:     cfg,
		logger:  logger.Named("session").With("session_id", id, "player0", p0.Name, "player1", p1.Name),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if s.source == nil {
		if err := chamber.Validate(cfg.ChamberCapacity, cfg.LiveRounds); err != nil {
			return nil, err
		}
		s.source = func() (*chamber.Chamber, error) {
			return chamber.New(cfg.ChamberCapacity, cfg.LiveRounds, s.rng)
		}
	}

	first, err := s.source()
	if err != nil {
		return nil, err
	}
	a, err := player.NewPlayer(p0.Name, cfg.MaxLife)
	if err != nil {
		return nil, err
	}
	b, err := player.NewPlayer(p1.Name, cfg.MaxLife)
	if err != nil {
		return nil, err
	}

	var duelOpts []duel.Option
	if cfg.ReloadOnEmpty {
		duelOpts = append(duelOpts, duel.WithReloader(s.reload))
	}
	s.duel = duel.New(a, b, first, duelOpts...)
	return s, nil
}

func (s *Session) Names() [2]string {
	return [2]string{s.players[0].Name, s.players[1].Name}
}

// Run plays the duel to the end. It returns a nil error when a winner was
// decided, by elimination or by turn timeout. Any other ending, a lost
// connection, an exhausted chamber or a cancelled ctx, is returned as an
// error. Both connections are closed when Run returns.
func (s *Session) Run(ctx context.Context) (Result, error) {
	stop := context.AfterFunc(ctx, s.closeAll)
	defer stop()
	defer s.closeAll()

	s.logger.Info("session started")
	if i, err := s.start(); err != nil {
		return s.abandon(i, err)
	}

	for s.duel.State() == duel.StateActive {
		cur := s.duel.Turn()
		p := s.players[cur]

		if err := p.Send(network.YourTurn()); err != nil {
			return s.abandon(cur, err)
		}
		lines, err := p.Receive(s.cfg.TurnTimeout)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("session cancelled")
				return Result{Winner: duel.NoWinner, Reason: ReasonError}, ctx.Err()
			}
			if errors.Is(err, ErrTurnTimeout) {
				return s.timeout(cur)
			}
			return s.abandon(cur, err)
		}

		queue := make([]queued, 0, len(lines))
		for _, line := range lines {
			a, err := decodeAction(line)
			if err != nil {
				s.logger.Warn("dropping undecodable message", "player", p.Name, "line", line, "error", err)
				continue
			}
			queue = append(queue, queued{turn: cur, action: a, line: line})
		}

		for _, q := range queue {
			res, done, err := s.dispatch(q)
			if done {
				return res, err
			}
		}
	}

	winner, _ := s.duel.Winner()
	return Result{Winner: winner, Reason: ReasonEliminated}, nil
}

// dispatch applies one queued action. done reports that Run must return.
func (s *Session) dispatch(q queued) (Result, bool, error) {
	// A turn-switching action earlier in the batch makes the rest stale.
	if q.turn != s.duel.Turn() {
		s.logger.Warn("dropping stale action", "player", s.players[q.turn].Name, "action", q.action, "queued_turn", q.turn, "turn", s.duel.Turn())
		return Result{}, false, nil
	}

	out, err := s.duel.Apply(q.turn, q.action)
	if errors.Is(err, duel.ErrInvalidAction) {
		s.logger.Warn("rejected action", "player", s.players[q.turn].Name, "line", q.line, "error", err)
		return Result{}, false, nil
	}
	if err != nil {
		s.logger.Error("duel failed", "error", err)
		res, err := s.abandon(duel.NoWinner, err)
		return res, true, err
	}

	s.logger.Debug("action applied",
		"actor", s.players[out.Actor].Name,
		"action", out.Action,
		"live", out.Live,
		"reloaded", out.Reloaded,
		"turn_passed", out.TurnPassed,
		"chamber", s.duel.Chamber().String(),
	)
	if i, err := s.broadcastStatus(); err != nil {
		res, err := s.abandon(i, err)
		return res, true, err
	}
	if out.GameOver {
		return s.gameOver(out.Winner, ReasonEliminated), true, nil
	}
	return Result{}, false, nil
}

func decodeAction(line string) (duel.Action, error) {
	op, err := network.DecodeCommand(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", duel.ErrInvalidAction, err)
	}
	switch op {
	case network.OpShootOpponent:
		return duel.ShootOpponent{}, nil
	case network.OpShootSelf:
		return duel.ShootSelf{}, nil
	default:
		return nil, fmt.Errorf("%w: opcode %d", duel.ErrInvalidAction, op)
	}
}

func (s *Session) reload() (*chamber.Chamber, error) {
	c, err := s.source()
	if err != nil {
		return nil, err
	}
	s.logger.Info("chamber reloaded", "capacity", c.Capacity(), "live", c.LiveCount())
	return c, nil
}

// start announces the duel and the initial life and chamber to both players.
// On failure it returns the index of the player whose connection broke.
func (s *Session) start() (int, error) {
	for i, p := range s.players {
		if err := p.Send(network.GameStart()); err != nil {
			return i, err
		}
	}
	for i, p := range s.players {
		if err := p.Send(network.UpdateLife(s.duel.Player(i).Life())); err != nil {
			return i, err
		}
	}
	c := s.duel.Chamber()
	for i, p := range s.players {
		if err := p.Send(network.UpdateBullet(c.Capacity(), c.LiveCount())); err != nil {
			return i, err
		}
	}
	return 0, nil
}

func (s *Session) broadcastStatus() (int, error) {
	c := s.duel.Chamber()
	for i, p := range s.players {
		if err := p.Send(network.UpdateLife(s.duel.Player(i).Life())); err != nil {
			return i, err
		}
		if err := p.Send(network.UpdateBullet(c.Remaining(), c.LiveCount())); err != nil {
			return i, err
		}
	}
	return 0, nil
}

func (s *Session) gameOver(winner int, reason Reason) Result {
	for i, p := range s.players {
		if err := p.Send(network.GameOver(i == winner)); err != nil {
			s.logger.Warn("game over not delivered", "player", p.Name, "error", err)
		}
	}
	s.logger.Info("session finished", "winner", s.players[winner].Name, "reason", reason)
	return Result{Winner: winner, Reason: reason}
}

func (s *Session) timeout(loser int) (Result, error) {
	s.logger.Info("turn timed out", "player", s.players[loser].Name, "timeout", s.cfg.TurnTimeout)
	if err := s.duel.Forfeit(loser); err != nil {
		return s.abandon(duel.NoWinner, err)
	}
	return s.gameOver(1-loser, ReasonTimeout), nil
}

// abandon ends the session after a fatal error. failed is the index of the
// player whose connection broke, or duel.NoWinner for game-state errors.
func (s *Session) abandon(failed int, err error) (Result, error) {
	reason := ReasonError
	if errors.Is(err, ErrConnectionLost) {
		reason = ReasonDisconnect
	}
	s.logger.Warn("session abandoned", "reason", reason, "error", err)

	res := Result{Winner: duel.NoWinner, Reason: reason}
	if reason == ReasonDisconnect && s.cfg.ForfeitOnDisconnect && failed != duel.NoWinner {
		survivor := 1 - failed
		if s.duel.State() == duel.StateActive && s.duel.Forfeit(failed) == nil {
			res.Winner = survivor
		}
		if err := s.players[survivor].Send(network.GameOver(true)); err != nil {
			s.logger.Debug("forfeit notice not delivered", "player", s.players[survivor].Name, "error", err)
		}
	}
	s.closeAll()
	return res, err
}

func (s *Session) closeAll() {
	s.closeOnce.Do(func() {
		for _, p := range s.players {
			p.Close()
		}
	})
}
