package client

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"roulette/internal/network"
)

// link is one connection and the goroutine that owns its read side.
type link struct {
	conn    *network.LineConn
	updates chan Update
	done    chan struct{}
	once    sync.Once
}

func startLink(conn *network.LineConn, logger hclog.Logger) *link {
	l := &link{
		conn:    conn,
		updates: make(chan Update, 16),
		done:    make(chan struct{}),
	}
	go l.read(logger)
	return l
}

func (l *link) read(logger hclog.Logger) {
	defer close(l.updates)
	for {
		lines, err := l.conn.ReadLines()
		if err != nil {
			l.push(Update{Err: err})
			return
		}
		for _, line := range lines {
			m, err := network.DecodeMessage(line)
			if err != nil {
				logger.Warn("invalid message from server", "line", line, "error", err)
				continue
			}
			if !l.push(Update{Msg: m}) {
				return
			}
		}
	}
}

func (l *link) push(u Update) bool {
	select {
	case l.updates <- u:
		return true
	case <-l.done:
		return false
	}
}

func (l *link) close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.conn.Close()
	})
	return err
}
