package client

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an event does not apply to the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is where the local player is in the connect, match, play cycle.
type State int

const (
	StateDisconnected State = iota
	StateInLobby
	StateMatching
	StateInGame
	StateInEndScreen
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateInLobby:
		return "in-lobby"
	case StateMatching:
		return "matching"
	case StateInGame:
		return "in-game"
	case StateInEndScreen:
		return "end-screen"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Event int

const (
	EventConnected Event = iota
	EventMatchRequested
	EventGameStarted
	EventGameOver
	EventReturnToLobby
	EventConnectionLost
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventMatchRequested:
		return "match-requested"
	case EventGameStarted:
		return "game-started"
	case EventGameOver:
		return "game-over"
	case EventReturnToLobby:
		return "return-to-lobby"
	case EventConnectionLost:
		return "connection-lost"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transition returns the state reached from s on e. A lost connection is
// accepted everywhere.
func transition(s State, e Event) (State, error) {
	if e == EventConnectionLost {
		return StateDisconnected, nil
	}
	switch {
	case s == StateDisconnected && e == EventConnected:
		return StateInLobby, nil
	case s == StateInLobby && e == EventMatchRequested:
		return StateMatching, nil
	case s == StateMatching && e == EventGameStarted:
		return StateInGame, nil
	case s == StateInGame && e == EventGameOver:
		return StateInEndScreen, nil
	case s == StateInEndScreen && e == EventReturnToLobby:
		return StateInLobby, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, s, e)
}
