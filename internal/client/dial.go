package client

import (
	"context"
	"fmt"
	"net"

	"roulette/internal/network"
)

// Resolver returns the server address to dial on each attempt.
type Resolver func() (string, error)

func StaticAddr(addr string) Resolver {
	return func() (string, error) { return addr, nil }
}

// Dialer builds a DialFunc for transport "tcp" or "ws". The address is
// resolved again before every attempt so a retry can land on another server.
func Dialer(transport string, resolve Resolver) (DialFunc, error) {
	var dial func(ctx context.Context, addr string) (network.Conn, error)
	switch transport {
	case "tcp":
		dial = func(ctx context.Context, addr string) (network.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		}
	case "ws":
		dial = func(ctx context.Context, addr string) (network.Conn, error) {
			c, err := network.DialWebSocket(ctx, addr)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}

	return func(ctx context.Context) (network.Conn, error) {
		addr, err := resolve()
		if err != nil {
			return nil, fmt.Errorf("resolve server: %w", err)
		}
		return dial(ctx, addr)
	}, nil
}
