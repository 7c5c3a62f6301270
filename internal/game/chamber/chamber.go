// Package chamber models the revolver cylinder shared by both players of a duel.
package chamber

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrInvalidConfiguration is returned when capacity and live rounds do not
	// describe a loadable cylinder.
	ErrInvalidConfiguration = errors.New("chamber: invalid configuration")

	// ErrExhausted is returned by Discharge once every slot has been fired.
	ErrExhausted = errors.New("chamber: exhausted")
)

// Chamber is a fixed-size cylinder. Only the cursor moves after construction.
type Chamber struct {
	slots  []bool // true = live round
	live   int
	cursor int
}

// New loads live rounds into capacity slots, every arrangement being equally
// likely under rng.
func New(capacity, live int, rng *rand.Rand) (*Chamber, error) {
	if err := Validate(capacity, live); err != nil {
		return nil, err
	}
	slots := make([]bool, capacity)
	for i := 0; i < live; i++ {
		slots[i] = true
	}
	rng.Shuffle(len(slots), func(i, j int) {
		slots[i], slots[j] = slots[j], slots[i]
	})
	return &Chamber{slots: slots, live: live}, nil
}

// FromSlots builds a chamber with a known load order.
func FromSlots(slots []bool) (*Chamber, error) {
	live := 0
	for _, s := range slots {
		if s {
			live++
		}
	}
	if err := Validate(len(slots), live); err != nil {
		return nil, err
	}
	return &Chamber{slots: append([]bool(nil), slots...), live: live}, nil
}

// Validate checks a (capacity, live) pair without building a chamber.
func Validate(capacity, live int) error {
	if capacity <= 0 || live <= 0 || live > capacity {
		return fmt.Errorf("%w: capacity=%d live=%d", ErrInvalidConfiguration, capacity, live)
	}
	return nil
}

// Discharge reports whether the slot under the cursor is live and advances.
func (c *Chamber) Discharge() (bool, error) {
	if c.cursor >= len(c.slots) {
		return false, ErrExhausted
	}
	live := c.slots[c.cursor]
	c.cursor++
	return live, nil
}

// Capacity is the number of slots, fired or not.
func (c *Chamber) Capacity() int { return len(c.slots) }

// LiveCount is the number of live rounds loaded at construction, not the
// number still unfired.
func (c *Chamber) LiveCount() int { return c.live }

// Cursor is the index of the next slot to fire.
func (c *Chamber) Cursor() int { return c.cursor }

// Remaining is the number of unfired slots. It is the slot count sent to
// clients in UpdateBullet.
func (c *Chamber) Remaining() int { return len(c.slots) - c.cursor }

// Exhausted reports that Discharge would fail with ErrExhausted.
func (c *Chamber) Exhausted() bool { return c.cursor >= len(c.slots) }

// LoadOrder returns a copy of the slot layout.
func (c *Chamber) LoadOrder() []bool {
	return append([]bool(nil), c.slots...)
}

func (c *Chamber) String() string {
	var sb strings.Builder
	for i, s := range c.slots {
		switch {
		case i < c.cursor:
			sb.WriteByte('_')
		case s:
			sb.WriteByte('+')
		default:
			sb.WriteByte('*')
		}
	}
	return sb.String()
}
