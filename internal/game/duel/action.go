package duel

// Action is one move a player can make on their turn. The set is closed:
// ShootOpponent and ShootSelf are the only implementations.
type Action interface {
	isAction()
	String() string
}

// ShootOpponent fires the next slot at the other player. The turn always passes.
type ShootOpponent struct{}

// ShootSelf fires the next slot at the acting player. The turn passes only on
// a blank.
type ShootSelf struct{}

func (ShootOpponent) isAction()      {}
func (ShootOpponent) String() string { return "shoot-opponent" }

func (ShootSelf) isAction()      {}
func (ShootSelf) String() string { return "shoot-self" }
