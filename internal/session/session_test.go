package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/internal/game/chamber"
	"roulette/internal/game/duel"
)

func defaultConfig() Config {
	return Config{
		ChamberCapacity:     6,
		LiveRounds:          1,
		MaxLife:             3,
		ReloadOnEmpty:       true,
		ForfeitOnDisconnect: true,
	}
}

type runResult struct {
	res Result
	err error
}

func startSession(t *testing.T, cfg Config, opts ...Option) (*peer, *peer, <-chan runResult) {
	t.Helper()
	p0, c0 := newPeer(t, "alice")
	p1, c1 := newPeer(t, "bob")
	s, err := New("test", p0, p1, cfg, hclog.NewNullLogger(), opts...)
	require.NoError(t, err)

	done := make(chan runResult, 1)
	go func() {
		res, err := s.Run(context.Background())
		done <- runResult{res, err}
	}()

	c0.expect(t, "0", "3 3", "4 6 1")
	c1.expect(t, "0", "3 3", "4 6 1")
	return c0, c1, done
}

func wait(t *testing.T, done <-chan runResult) runResult {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(waitFor):
		t.Fatal("session did not finish")
		return runResult{}
	}
}

func TestNewRejectsInvalidChamber(t *testing.T) {
	p0, _ := newPeer(t, "alice")
	p1, _ := newPeer(t, "bob")
	cfg := defaultConfig()
	cfg.LiveRounds = 7

	_, err := New("x", p0, p1, cfg, hclog.NewNullLogger())
	require.ErrorIs(t, err, chamber.ErrInvalidConfiguration)
}

// Player 0 shoots themself on a blank, player 1 fires back, and so on until
// player 0 runs out of life.
func TestSessionPlaysToGameOver(t *testing.T) {
	c0, c1, done := startSession(t, defaultConfig(), WithChamberSource(chambers(slots("*+****"))))

	life0 := 3
	for round := 0; ; round++ {
		require.Less(t, round, 3)

		c0.expect(t, "2")
		c0.send(t, "1\n")
		c0.expect(t, fmt.Sprintf("3 %d", life0), "4 5 1")
		c1.expect(t, "3 3", "4 5 1")

		c1.expect(t, "2")
		c1.send(t, "0\n")
		life0--
		c0.expect(t, fmt.Sprintf("3 %d", life0), "4 4 1")
		c1.expect(t, "3 3", "4 4 1")
		if life0 == 0 {
			break
		}

		// Burn the four blanks left in the chamber.
		for i, rem := 0, 3; i < 4; i, rem = i+1, rem-1 {
			cur := c0
			if i%2 == 1 {
				cur = c1
			}
			cur.expect(t, "2")
			cur.send(t, "0\n")
			c0.expect(t, fmt.Sprintf("3 %d", life0), fmt.Sprintf("4 %d 1", rem))
			c1.expect(t, "3 3", fmt.Sprintf("4 %d 1", rem))
		}
	}

	c0.expect(t, "1 0")
	c1.expect(t, "1 1")
	c0.expectClosed(t)
	c1.expectClosed(t)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.res.Winner)
	assert.Equal(t, ReasonEliminated, r.res.Reason)
}

func TestSelfEliminationLosesTheGame(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxLife = 1
	p0, c0 := newPeer(t, "alice")
	p1, c1 := newPeer(t, "bob")
	s, err := New("x", p0, p1, cfg, hclog.NewNullLogger(), WithChamberSource(chambers(slots("+*****"))))
	require.NoError(t, err)
	done := make(chan runResult, 1)
	go func() {
		res, err := s.Run(context.Background())
		done <- runResult{res, err}
	}()

	c0.expect(t, "0", "3 1", "4 6 1", "2")
	c1.expect(t, "0", "3 1", "4 6 1")
	c0.send(t, "1\n")
	c0.expect(t, "3 0", "4 5 1", "1 0")
	c1.expect(t, "3 1", "4 5 1", "1 1")

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.res.Winner)
}

func TestMalformedMessagesAreSkipped(t *testing.T) {
	c0, c1, _ := startSession(t, defaultConfig(), WithChamberSource(chambers(slots("*****+"))))

	c0.expect(t, "2")
	c0.send(t, "abc\n")
	c0.expect(t, "2")
	c0.send(t, "0 x\n")
	c0.expect(t, "2")
	c0.send(t, "7\n")
	c0.expect(t, "2")

	c0.send(t, "0\n")
	c0.expect(t, "3 3", "4 5 1")
	c1.expect(t, "3 3", "4 5 1", "2")
}

// An action queued behind a turn-passing action in the same read must not be
// applied to the new turn.
func TestStaleBatchedActionIsDropped(t *testing.T) {
	c0, c1, _ := startSession(t, defaultConfig(), WithChamberSource(chambers(slots("*****+"))))

	c0.expect(t, "2")
	c0.send(t, "0\n0\n")
	c0.expect(t, "3 3", "4 5 1")
	c1.expect(t, "3 3", "4 5 1", "2")

	c1.send(t, "0\n")
	c0.expect(t, "3 3", "4 4 1")
	c1.expect(t, "3 3", "4 4 1")
	c0.expect(t, "2")
}

// A live self-shot keeps the turn, so the next action in the batch is still valid.
func TestBatchAfterLiveSelfShotApplies(t *testing.T) {
	c0, c1, _ := startSession(t, defaultConfig(), WithChamberSource(chambers(slots("+*****"))))

	c0.expect(t, "2")
	c0.send(t, "1\n0\n")
	c0.expect(t, "3 2", "4 5 1", "3 2", "4 4 1")
	c1.expect(t, "3 3", "4 5 1", "3 3", "4 4 1", "2")
}

func TestPartialLineIsReassembled(t *testing.T) {
	c0, c1, _ := startSession(t, defaultConfig(), WithChamberSource(chambers(slots("*****+"))))

	c0.expect(t, "2")
	c0.send(t, "1")
	c0.send(t, "\n")
	c0.expect(t, "3 3", "4 5 1")
	c1.expect(t, "3 3", "4 5 1", "2")
}

func TestDisconnectForfeitsToSurvivor(t *testing.T) {
	c0, c1, done := startSession(t, defaultConfig())

	c0.expect(t, "2")
	c0.conn.Close()

	c1.expect(t, "1 1")
	c1.expectClosed(t)

	r := wait(t, done)
	require.ErrorIs(t, r.err, ErrConnectionLost)
	assert.Equal(t, 1, r.res.Winner)
	assert.Equal(t, ReasonDisconnect, r.res.Reason)
}

func TestDisconnectWithoutForfeitSendsNothing(t *testing.T) {
	cfg := defaultConfig()
	cfg.ForfeitOnDisconnect = false
	c0, c1, done := startSession(t, cfg)

	c0.expect(t, "2")
	c0.conn.Close()

	c1.expectClosed(t)
	r := wait(t, done)
	require.ErrorIs(t, r.err, ErrConnectionLost)
	assert.Equal(t, duel.NoWinner, r.res.Winner)
}

func TestTurnTimeoutForfeitsCurrentPlayer(t *testing.T) {
	cfg := defaultConfig()
	cfg.TurnTimeout = 100 * time.Millisecond
	c0, c1, done := startSession(t, cfg)

	c0.expect(t, "2", "1 0")
	c1.expect(t, "1 1")
	c0.expectClosed(t)
	c1.expectClosed(t)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.res.Winner)
	assert.Equal(t, ReasonTimeout, r.res.Reason)
}

func TestExhaustedChamberAbortsWithoutReload(t *testing.T) {
	cfg := defaultConfig()
	cfg.ReloadOnEmpty = false
	p0, c0 := newPeer(t, "alice")
	p1, c1 := newPeer(t, "bob")
	s, err := New("x", p0, p1, cfg, hclog.NewNullLogger(), WithChamberSource(chambers(slots("+"))))
	require.NoError(t, err)
	done := make(chan runResult, 1)
	go func() {
		res, err := s.Run(context.Background())
		done <- runResult{res, err}
	}()

	c0.expect(t, "0", "3 3", "4 1 1", "2")
	c1.expect(t, "0", "3 3", "4 1 1")
	c0.send(t, "0\n")
	c0.expect(t, "3 3", "4 0 1")
	c1.expect(t, "3 2", "4 0 1", "2")
	c1.send(t, "0\n")

	c0.expectClosed(t)
	c1.expectClosed(t)
	r := wait(t, done)
	require.ErrorIs(t, r.err, chamber.ErrExhausted)
	assert.Equal(t, duel.NoWinner, r.res.Winner)
}

func TestExhaustedChamberReloads(t *testing.T) {
	p0, c0 := newPeer(t, "alice")
	p1, c1 := newPeer(t, "bob")
	s, err := New("x", p0, p1, defaultConfig(), hclog.NewNullLogger(),
		WithChamberSource(chambers(slots("*"), slots("+**"))))
	require.NoError(t, err)
	go s.Run(context.Background())

	c0.expect(t, "0", "3 3", "4 1 1", "2")
	c1.expect(t, "0", "3 3", "4 1 1")
	c0.send(t, "0\n")
	c0.expect(t, "3 3", "4 0 1")
	c1.expect(t, "3 3", "4 0 1", "2")
	c1.send(t, "0\n")
	c0.expect(t, "3 2", "4 2 1")
	c1.expect(t, "3 3", "4 2 1")
}

func TestCancelClosesConnections(t *testing.T) {
	p0, c0 := newPeer(t, "alice")
	p1, c1 := newPeer(t, "bob")
	s, err := New("x", p0, p1, defaultConfig(), hclog.NewNullLogger(), WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runResult, 1)
	go func() {
		res, err := s.Run(ctx)
		done <- runResult{res, err}
	}()

	c0.expect(t, "0", "3 3", "4 6 1", "2")
	c1.expect(t, "0", "3 3", "4 6 1")
	cancel()

	c0.expectClosed(t)
	c1.expectClosed(t)
	r := wait(t, done)
	require.ErrorIs(t, r.err, context.Canceled)
}
