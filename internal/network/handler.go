package network

import "context"

// Handler receives every accepted connection, TCP or WebSocket. It owns the
// connection from then on and must close it.
type Handler interface {
	OnConnect(ctx context.Context, c Conn)
}

type HandlerFunc func(ctx context.Context, c Conn)

func (f HandlerFunc) OnConnect(ctx context.Context, c Conn) { f(ctx, c) }
