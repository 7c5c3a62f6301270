package client

import (
	"errors"
	"fmt"
	"strings"

	"roulette/internal/network"
)

// ErrUnexpectedMessage is returned for server messages that make no sense in
// the current state.
var ErrUnexpectedMessage = errors.New("unexpected message")

// View is everything a front-end needs to draw the player's screen.
type View struct {
	State   State
	Name    string
	Life    int
	Slots   int
	Live    int
	Turn    bool
	Won     bool
	Message string
}

// Chamber renders the chamber as one '+' per live round followed by one '*'
// per blank. Live rounds are only known by their loaded count, so the
// rendering never reveals positions.
func (v View) Chamber() string {
	live := min(v.Live, v.Slots)
	if live < 0 {
		live = 0
	}
	return strings.Repeat("+", live) + strings.Repeat("*", v.Slots-live)
}

func (v *View) fire(e Event) error {
	next, err := transition(v.State, e)
	if err != nil {
		return err
	}
	v.State = next
	return nil
}

// apply updates the view with one server message.
func (v *View) apply(m network.Message) error {
	switch m.Op {
	case network.OpGameStart:
		if err := v.fire(EventGameStarted); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnexpectedMessage, m.Op, err)
		}
		v.Turn = false
		v.Won = false
		v.Message = "Game started"

	case network.OpGameOver:
		if err := v.fire(EventGameOver); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrUnexpectedMessage, m.Op, err)
		}
		v.Turn = false
		v.Won = m.Args[0] == 1
		if v.Won {
			v.Message = "Game over! You win!"
		} else {
			v.Message = "Game over! You lose!"
		}

	case network.OpYourTurn:
		if v.State != StateInGame {
			return fmt.Errorf("%w: %s while %s", ErrUnexpectedMessage, m.Op, v.State)
		}
		v.Turn = true
		v.Message = "Your turn"

	case network.OpUpdateLife:
		v.Life = m.Args[0]

	case network.OpUpdateBullet:
		v.Slots, v.Live = m.Args[0], m.Args[1]

	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedMessage, m.Op)
	}
	return nil
}
