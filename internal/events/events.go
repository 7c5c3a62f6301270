// Package events publishes session lifecycle notifications for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"
)

type Kind string

const (
	KindStarted  Kind = "started"
	KindFinished Kind = "finished"
	KindAborted  Kind = "aborted"
)

// SubjectPrefix is prepended to the kind to build the NATS subject.
const SubjectPrefix = "roulette.session."

type Event struct {
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"sessionId"`
	Players   []string  `json:"players"`
	Winner    string    `json:"winner,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

func (e Event) Subject() string {
	return SubjectPrefix + string(e.Kind)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type NATSPublisher struct {
	conn   *nats.Conn
	logger hclog.Logger
}

// ConnectNATS dials url and keeps reconnecting in the background for the life
// of the publisher.
func ConnectNATS(url string, logger hclog.Logger) (*NATSPublisher, error) {
	logger = logger.Named("events")
	nc, err := nats.Connect(url,
		nats.Name("roulette-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	logger.Info("connected to nats", "url", nc.ConnectedUrl())
	return &NATSPublisher{conn: nc, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(e.Subject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Subject(), err)
	}
	return nil
}

// Healthy reports whether the NATS connection is currently usable.
func (p *NATSPublisher) Healthy() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status %s", p.conn.Status())
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
