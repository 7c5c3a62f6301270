package session

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"roulette/internal/network"
)

// Lobby is the network.Handler for fresh connections: it reads the
// handshake name and queues the player for matchmaking.
type Lobby struct {
	matchmaker       *Matchmaker
	handshakeTimeout time.Duration
	maxLine          int
	logger           hclog.Logger
}

func NewLobby(m *Matchmaker, handshakeTimeout time.Duration, maxLine int, logger hclog.Logger) *Lobby {
	return &Lobby{
		matchmaker:       m,
		handshakeTimeout: handshakeTimeout,
		maxLine:          maxLine,
		logger:           logger.Named("lobby"),
	}
}

func (l *Lobby) OnConnect(ctx context.Context, c network.Conn) {
	lc := network.NewLineConn(c, l.maxLine)
	remote := c.RemoteAddr().String()

	if l.handshakeTimeout > 0 {
		if err := lc.SetReadDeadline(time.Now().Add(l.handshakeTimeout)); err != nil {
			l.logger.Debug("handshake deadline failed", "remote", remote, "error", err)
			lc.Close()
			return
		}
	}
	name, err := lc.ReadLine()
	if err != nil {
		l.logger.Debug("handshake failed", "remote", remote, "error", err)
		lc.Close()
		return
	}
	if err := lc.SetReadDeadline(time.Time{}); err != nil {
		l.logger.Debug("handshake deadline failed", "remote", remote, "error", err)
		lc.Close()
		return
	}

	name = strings.TrimSpace(name)
	p := NewPlayerSession(name, lc)
	l.logger.Info("player requested match", "player", name, "remote", remote)
	if err := l.matchmaker.Enqueue(ctx, p); err != nil {
		p.Close()
		return
	}

	// Watch the queued player until a session takes over.
	select {
	case <-p.Paired():
	case <-ctx.Done():
	case <-p.Done():
		l.logger.Info("player left the queue", "player", name, "remote", remote)
		if err := l.matchmaker.Leave(ctx, p); err != nil {
			p.Close()
		}
	}
}
