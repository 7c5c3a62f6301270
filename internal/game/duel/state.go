package duel

import "fmt"

type State int

const (
	StateActive State = iota
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type event int

const (
	eventEliminated event = iota
	eventForfeit
)

func (e event) String() string {
	switch e {
	case eventEliminated:
		return "eliminated"
	case eventForfeit:
		return "forfeit"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transition is the only place the duel state changes.
func transition(s State, e event) (State, error) {
	switch s {
	case StateActive:
		switch e {
		case eventEliminated, eventForfeit:
			return StateFinished, nil
		}
	}
	return s, fmt.Errorf("duel: no transition from %s on %s", s, e)
}
