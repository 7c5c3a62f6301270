package player

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyName is returned when a player is created without a display name.
var ErrEmptyName = errors.New("player: empty name")

// Player is the game-relevant half of a connected peer: who they are and how
// much life they have left. It is owned by exactly one duel.
type Player struct {
	name    string
	life    int
	maxLife int
}

func NewPlayer(name string, maxLife int) (*Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if maxLife <= 0 {
		return nil, fmt.Errorf("player %q: max life must be positive, got %d", name, maxLife)
	}
	return &Player{
		name:    name,
		life:    maxLife,
		maxLife: maxLife,
	}, nil
}

func (p *Player) Name() string { return p.name }

func (p *Player) Life() int { return p.life }

func (p *Player) MaxLife() int { return p.maxLife }

func (p *Player) Alive() bool { return p.life > 0 }

// Hit removes one life point and reports whether the player was eliminated by it.
// Life never drops below zero.
func (p *Player) Hit() bool {
	if p.life == 0 {
		return false
	}
	p.life--
	return p.life == 0
}

func (p *Player) String() string {
	return fmt.Sprintf("%s (%d/%d)", p.name, p.life, p.maxLife)
}
