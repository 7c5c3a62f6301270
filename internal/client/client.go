// Package client is the player side of the roulette protocol: connecting,
// matchmaking and turn input, independent of how the screen is drawn.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-hclog"

	"roulette/internal/network"
)

var (
	ErrEmptyName    = errors.New("player name is empty")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrNotConnected = errors.New("not connected")
)

// DialFunc opens a new connection to a server.
type DialFunc func(ctx context.Context) (network.Conn, error)

// Update is one item from the reader goroutine. Err is set on the last
// update of a connection, after which the channel is closed.
type Update struct {
	Msg network.Message
	Err error
}

type Options struct {
	// RetryInterval is the pause between failed connection attempts.
	RetryInterval time.Duration
	// MaxRetries of zero retries until the context is done.
	MaxRetries uint
	MaxLine    int
}

// Client drives one player. It is not safe for concurrent use: the
// front-end goroutine calls every method and consumes Updates.
type Client struct {
	dial   DialFunc
	opts   Options
	logger hclog.Logger

	view View
	link *link
}

func New(dial DialFunc, opts Options, logger hclog.Logger) *Client {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 5 * time.Second
	}
	return &Client{
		dial:   dial,
		opts:   opts,
		logger: logger.Named("client"),
		view:   View{State: StateDisconnected, Message: "Connecting to server..."},
	}
}

// View returns a snapshot of the player's screen state.
func (c *Client) View() View {
	return c.view
}

// Updates delivers server messages for the current connection. It is nil
// while disconnected.
func (c *Client) Updates() <-chan Update {
	if c.link == nil {
		return nil
	}
	return c.link.updates
}

// Connect dials the server, retrying at a fixed interval, and moves the
// player into the lobby.
func (c *Client) Connect(ctx context.Context) error {
	if _, err := transition(c.view.State, EventConnected); err != nil {
		return err
	}
	if err := c.open(ctx); err != nil {
		c.view.Message = fmt.Sprintf("Unable to connect to server: %v", err)
		return err
	}
	c.view.State = StateInLobby
	c.view.Message = "Enter your name to start matching"
	return nil
}

func (c *Client) open(ctx context.Context) error {
	attempt := 0
	conn, err := backoff.Retry(ctx, func() (network.Conn, error) {
		attempt++
		return c.dial(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.opts.RetryInterval)),
		backoff.WithMaxTries(c.opts.MaxRetries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("connect failed, retrying", "attempt", attempt, "retry_in", next, "error", err)
			c.view.Message = fmt.Sprintf("Unable to connect to server. Retrying... %v", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	c.logger.Debug("connected", "remote", conn.RemoteAddr().String(), "attempts", attempt)
	c.link = startLink(network.NewLineConn(conn, c.opts.MaxLine), c.logger)
	return nil
}

// RequestMatch sends the handshake name and waits in the matchmaking queue.
func (c *Client) RequestMatch(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if c.link == nil {
		return ErrNotConnected
	}
	if _, err := transition(c.view.State, EventMatchRequested); err != nil {
		return err
	}
	if err := c.link.conn.WriteLine(name); err != nil {
		c.lost(err)
		return err
	}
	c.view.State = StateMatching
	c.view.Name = name
	c.view.Message = "Matching..."
	return nil
}

func (c *Client) ShootOpponent() error { return c.shoot(network.OpShootOpponent) }

func (c *Client) ShootSelf() error { return c.shoot(network.OpShootSelf) }

func (c *Client) shoot(op network.ClientOp) error {
	if c.view.State != StateInGame || !c.view.Turn {
		return ErrNotYourTurn
	}
	if err := c.link.conn.WriteLine(op.Line()); err != nil {
		c.lost(err)
		return err
	}
	c.view.Turn = false
	c.view.Message = "Waiting for opponent"
	return nil
}

// Handle applies one update to the view. Messages that do not fit the
// current state are logged and ignored.
func (c *Client) Handle(u Update) {
	if u.Err != nil {
		// The server hangs up once the result is out.
		if c.view.State == StateInEndScreen {
			c.dropLink()
			return
		}
		c.lost(u.Err)
		return
	}
	if err := c.view.apply(u.Msg); err != nil {
		c.logger.Warn("ignoring server message", "message", u.Msg, "error", err)
		return
	}
	if u.Msg.Op == network.OpGameOver {
		c.view.Name = ""
	}
}

// ReturnToLobby leaves the end screen and reconnects for another match.
func (c *Client) ReturnToLobby(ctx context.Context) error {
	next, err := transition(c.view.State, EventReturnToLobby)
	if err != nil {
		return err
	}
	c.dropLink()
	if err := c.open(ctx); err != nil {
		c.lost(err)
		return err
	}
	c.view = View{State: next, Message: "Enter your name to start matching"}
	return nil
}

func (c *Client) Close() error {
	if c.link == nil {
		return nil
	}
	err := c.link.close()
	c.link = nil
	c.view.State, _ = transition(c.view.State, EventConnectionLost)
	return err
}

func (c *Client) lost(err error) {
	c.logger.Info("connection lost", "state", c.view.State, "error", err)
	c.dropLink()
	c.view.State, _ = transition(c.view.State, EventConnectionLost)
	c.view.Turn = false
	c.view.Message = "Connection to server lost"
}

func (c *Client) dropLink() {
	if c.link != nil {
		c.link.close()
		c.link = nil
	}
}
