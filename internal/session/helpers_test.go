package session

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roulette/internal/game/chamber"
	"roulette/internal/network"
)

const waitFor = 2 * time.Second

// peer is the client end of a net.Pipe, with every received line pushed to lines.
type peer struct {
	conn  net.Conn
	lines chan string
}

func newPeer(t *testing.T, name string) (*PlayerSession, *peer) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})

	p := &peer{conn: client, lines: make(chan string, 128)}
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
	}()
	return NewPlayerSession(name, network.NewLineConn(server, 0)), p
}

func (p *peer) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got, ok := <-p.lines:
			require.True(t, ok, "connection closed while waiting for %q", w)
			require.Equal(t, w, got)
		case <-time.After(waitFor):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func (p *peer) expectClosed(t *testing.T) {
	t.Helper()
	select {
	case got, ok := <-p.lines:
		require.False(t, ok, "unexpected message %q", got)
	case <-time.After(waitFor):
		t.Fatal("connection was not closed")
	}
}

func (p *peer) send(t *testing.T, s string) {
	t.Helper()
	_, err := io.WriteString(p.conn, s)
	require.NoError(t, err)
}

// chambers returns a source that hands out copies of layouts in order and
// repeats the last one.
func chambers(layouts ...[]bool) func() (*chamber.Chamber, error) {
	i := 0
	return func() (*chamber.Chamber, error) {
		l := layouts[i]
		if i < len(layouts)-1 {
			i++
		}
		return chamber.FromSlots(l)
	}
}

func slots(s string) []bool {
	out := make([]bool, len(s))
	for i, c := range s {
		out[i] = c == '+'
	}
	return out
}
