// Package duel implements the turn state machine of one two-player match.
//
// A Duel owns both players' life totals and the shared chamber. It does no
// I/O; the session loop feeds it actions and relays the resulting Outcome to
// the peers.
package duel

import (
	"errors"
	"fmt"

	"roulette/internal/game/chamber"
	"roulette/internal/game/player"
)

var (
	// ErrInvalidAction covers every action the duel refuses to apply.
	ErrInvalidAction = errors.New("duel: invalid action")

	// ErrNotYourTurn is returned for actions submitted by the player not holding the turn.
	ErrNotYourTurn = fmt.Errorf("%w: not your turn", ErrInvalidAction)

	// ErrFinished is returned once a winner has been decided.
	ErrFinished = errors.New("duel: finished")
)

// NoWinner is the Winner value of an outcome that did not end the duel.
const NoWinner = -1

// Reloader supplies a fresh chamber when the current one runs out.
type Reloader func() (*chamber.Chamber, error)

type Option func(*Duel)

// WithReloader makes an exhausted chamber get replaced instead of failing
// the action with chamber.ErrExhausted.
func WithReloader(r Reloader) Option {
	return func(d *Duel) {
		d.reload = r
	}
}

// Outcome describes the effect of one applied action.
type Outcome struct {
	Action     Action
	Actor      int
	Target     int
	Live       bool
	Reloaded   bool
	TurnPassed bool
	GameOver   bool
	Winner     int
}

type Duel struct {
	players [2]*player.Player
	chamber *chamber.Chamber
	reload  Reloader

	turn   int
	state  State
	winner int
}

// New starts an active duel with player 0 holding the turn.
func New(p0, p1 *player.Player, c *chamber.Chamber, opts ...Option) *Duel {
	d := &Duel{
		players: [2]*player.Player{p0, p1},
		chamber: c,
		state:   StateActive,
		winner:  NoWinner,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Duel) Turn() int { return d.turn }

func (d *Duel) State() State { return d.state }

func (d *Duel) Player(i int) *player.Player { return d.players[i] }

func (d *Duel) Chamber() *chamber.Chamber { return d.chamber }

// Winner returns the index of the winning player once the duel is finished.
func (d *Duel) Winner() (int, bool) {
	if d.state != StateFinished {
		return NoWinner, false
	}
	return d.winner, true
}

// Apply validates and applies an action submitted by the player at index actor.
// A rejected action leaves life totals, the chamber cursor and the turn untouched.
func (d *Duel) Apply(actor int, a Action) (Outcome, error) {
	if d.state == StateFinished {
		return Outcome{}, ErrFinished
	}
	if actor != 0 && actor != 1 {
		return Outcome{}, fmt.Errorf("%w: unknown player index %d", ErrInvalidAction, actor)
	}
	if actor != d.turn {
		return Outcome{}, ErrNotYourTurn
	}

	switch a.(type) {
	case ShootOpponent:
		return d.shootOpponent(a)
	case ShootSelf:
		return d.shootSelf(a)
	default:
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidAction, a)
	}
}

func (d *Duel) shootOpponent(a Action) (Outcome, error) {
	actor := d.turn
	target := 1 - actor
	live, reloaded, err := d.discharge()
	if err != nil {
		return Outcome{}, err
	}

	d.switchTurn()
	out := Outcome{
		Action:     a,
		Actor:      actor,
		Target:     target,
		Live:       live,
		Reloaded:   reloaded,
		TurnPassed: true,
		Winner:     NoWinner,
	}
	if live && d.players[target].Hit() {
		if err := d.finish(eventEliminated, actor); err != nil {
			return Outcome{}, err
		}
		out.GameOver = true
		out.Winner = actor
	}
	return out, nil
}

func (d *Duel) shootSelf(a Action) (Outcome, error) {
	actor := d.turn
	live, reloaded, err := d.discharge()
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Action:   a,
		Actor:    actor,
		Target:   actor,
		Live:     live,
		Reloaded: reloaded,
		Winner:   NoWinner,
	}
	if !live {
		d.switchTurn()
		out.TurnPassed = true
		return out, nil
	}
	if d.players[actor].Hit() {
		if err := d.finish(eventEliminated, 1-actor); err != nil {
			return Outcome{}, err
		}
		out.GameOver = true
		out.Winner = 1 - actor
	}
	return out, nil
}

// Forfeit ends the duel with the player at index loser conceding.
func (d *Duel) Forfeit(loser int) error {
	if loser != 0 && loser != 1 {
		return fmt.Errorf("duel: unknown player index %d", loser)
	}
	return d.finish(eventForfeit, 1-loser)
}

func (d *Duel) discharge() (live, reloaded bool, err error) {
	if d.chamber.Exhausted() && d.reload != nil {
		c, err := d.reload()
		if err != nil {
			return false, false, fmt.Errorf("reload chamber: %w", err)
		}
		d.chamber = c
		reloaded = true
	}
	live, err = d.chamber.Discharge()
	if err != nil {
		return false, false, err
	}
	return live, reloaded, nil
}

func (d *Duel) switchTurn() {
	d.turn = 1 - d.turn
}

func (d *Duel) finish(e event, winner int) error {
	next, err := transition(d.state, e)
	if err != nil {
		return err
	}
	d.state = next
	d.winner = winner
	return nil
}
