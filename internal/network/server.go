package network

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-hclog"
)

// Server accepts player connections and hands them to a Handler.
type Server struct {
	handler Handler
	logger  hclog.Logger
}

func NewServer(handler Handler, logger hclog.Logger) *Server {
	return &Server{
		handler: handler,
		logger:  logger.Named("network"),
	}
}

// ServeTCP accepts connections on ln until ctx is cancelled. Each connection
// is handled on its own goroutine.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listening", "transport", "tcp", "addr", ln.Addr().String())
	retry := acceptBackOff()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			wait := retry.NextBackOff()
			s.logger.Warn("accept failed", "error", err, "retry_in", wait)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
			continue
		}
		retry.Reset()
		s.logger.Debug("client connected", "remote", conn.RemoteAddr().String())
		go s.handler.OnConnect(ctx, conn)
	}
}

// acceptBackOff paces retries after transient accept errors such as EMFILE.
func acceptBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.Reset()
	return b
}

// WebSocketHandler upgrades HTTP requests and hands the resulting connection
// to the handler. ctx bounds the connection's lifetime, not the request's.
func (s *Server) WebSocketHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.logger.Debug("client connected", "transport", "websocket", "remote", ws.RemoteAddr().String())
		go s.handler.OnConnect(ctx, NewWSConn(ws))
	})
}
