package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette/internal/network"
)

const waitFor = 2 * time.Second

// fakeServer is the server end of a piped connection.
type fakeServer struct {
	conn  net.Conn
	lines chan string
}

func (s *fakeServer) send(t *testing.T, lines string) {
	t.Helper()
	_, err := io.WriteString(s.conn, lines)
	require.NoError(t, err)
}

func (s *fakeServer) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-s.lines:
		require.Equal(t, want, got)
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %q", want)
	}
}

// pipeDialer hands out one fresh pipe per dial and exposes the server ends.
func pipeDialer(t *testing.T) (DialFunc, <-chan *fakeServer) {
	servers := make(chan *fakeServer, 4)
	dial := func(context.Context) (network.Conn, error) {
		server, client := net.Pipe()
		t.Cleanup(func() {
			server.Close()
			client.Close()
		})
		fs := &fakeServer{conn: server, lines: make(chan string, 16)}
		go func() {
			sc := bufio.NewScanner(server)
			for sc.Scan() {
				fs.lines <- sc.Text()
			}
		}()
		servers <- fs
		return client, nil
	}
	return dial, servers
}

func connected(t *testing.T) (*Client, *fakeServer, <-chan *fakeServer) {
	t.Helper()
	dial, servers := pipeDialer(t)
	c := New(dial, Options{RetryInterval: time.Millisecond}, hclog.NewNullLogger())
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.Connect(context.Background()))
	return c, <-servers, servers
}

// pump handles updates until cond holds on the view.
func pump(t *testing.T, c *Client, cond func(View) bool) {
	t.Helper()
	deadline := time.After(waitFor)
	for !cond(c.View()) {
		select {
		case u, ok := <-c.Updates():
			require.True(t, ok, "updates closed early, view %+v", c.View())
			c.Handle(u)
		case <-deadline:
			t.Fatalf("condition not reached, view %+v", c.View())
		}
	}
}

func TestTransitions(t *testing.T) {
	cycle := []struct {
		from State
		on   Event
		to   State
	}{
		{StateDisconnected, EventConnected, StateInLobby},
		{StateInLobby, EventMatchRequested, StateMatching},
		{StateMatching, EventGameStarted, StateInGame},
		{StateInGame, EventGameOver, StateInEndScreen},
		{StateInEndScreen, EventReturnToLobby, StateInLobby},
	}
	for _, tc := range cycle {
		got, err := transition(tc.from, tc.on)
		require.NoError(t, err, "%s on %s", tc.from, tc.on)
		assert.Equal(t, tc.to, got)
	}

	for _, s := range []State{StateDisconnected, StateInLobby, StateMatching, StateInGame, StateInEndScreen} {
		got, err := transition(s, EventConnectionLost)
		require.NoError(t, err)
		assert.Equal(t, StateDisconnected, got)
	}

	got, err := transition(StateInLobby, EventGameOver)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateInLobby, got)
	_, err = transition(StateInGame, EventMatchRequested)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestChamberRendering(t *testing.T) {
	assert.Equal(t, "+*****", View{Slots: 6, Live: 1}.Chamber())
	assert.Equal(t, "++*", View{Slots: 3, Live: 2}.Chamber())
	assert.Equal(t, "++", View{Slots: 2, Live: 5}.Chamber())
	assert.Equal(t, "", View{}.Chamber())
}

func TestConnectRetries(t *testing.T) {
	dial, servers := pipeDialer(t)
	failures := 2
	flaky := func(ctx context.Context) (network.Conn, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("connection refused")
		}
		return dial(ctx)
	}

	c := New(flaky, Options{RetryInterval: time.Millisecond}, hclog.NewNullLogger())
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))
	<-servers

	assert.Equal(t, 0, failures)
	assert.Equal(t, StateInLobby, c.View().State)
	assert.NotNil(t, c.Updates())
}

func TestConnectGivesUp(t *testing.T) {
	refused := func(context.Context) (network.Conn, error) {
		return nil, errors.New("connection refused")
	}
	c := New(refused, Options{RetryInterval: time.Millisecond, MaxRetries: 3}, hclog.NewNullLogger())

	require.Error(t, c.Connect(context.Background()))
	assert.Equal(t, StateDisconnected, c.View().State)
	assert.Nil(t, c.Updates())
}

func TestFullMatch(t *testing.T) {
	c, srv, servers := connected(t)

	require.ErrorIs(t, c.RequestMatch("   "), ErrEmptyName)
	require.NoError(t, c.RequestMatch("  alice "))
	srv.expect(t, "alice")
	assert.Equal(t, StateMatching, c.View().State)
	assert.Equal(t, "alice", c.View().Name)

	srv.send(t, "0\n3 3\n4 6 1\n")
	pump(t, c, func(v View) bool { return v.Slots == 6 })
	v := c.View()
	assert.Equal(t, StateInGame, v.State)
	assert.Equal(t, 3, v.Life)
	assert.Equal(t, "+*****", v.Chamber())
	assert.False(t, v.Turn)
	require.ErrorIs(t, c.ShootSelf(), ErrNotYourTurn)

	srv.send(t, "2\n")
	pump(t, c, func(v View) bool { return v.Turn })
	require.NoError(t, c.ShootSelf())
	srv.expect(t, "1")
	assert.False(t, c.View().Turn)

	srv.send(t, "3 2\n4 5 1\n2\n")
	pump(t, c, func(v View) bool { return v.Turn })
	assert.Equal(t, 2, c.View().Life)
	require.NoError(t, c.ShootOpponent())
	srv.expect(t, "0")

	srv.send(t, "3 2\n4 4 1\n1 1\n")
	srv.conn.Close()
	pump(t, c, func(v View) bool { return v.State == StateInEndScreen })
	v = c.View()
	assert.True(t, v.Won)
	assert.Equal(t, "Game over! You win!", v.Message)
	assert.Empty(t, v.Name)

	// The hang-up after the result keeps the end screen.
	pump(t, c, func(View) bool { return c.Updates() == nil })
	assert.Equal(t, StateInEndScreen, c.View().State)

	require.NoError(t, c.ReturnToLobby(context.Background()))
	<-servers
	assert.Equal(t, StateInLobby, c.View().State)
	assert.Equal(t, 0, c.View().Life)
}

func TestLosingMatch(t *testing.T) {
	c, srv, _ := connected(t)
	require.NoError(t, c.RequestMatch("bob"))
	srv.expect(t, "bob")

	srv.send(t, "0\n3 1\n4 6 1\n3 0\n4 5 1\n1 0\n")
	pump(t, c, func(v View) bool { return v.State == StateInEndScreen })
	assert.False(t, c.View().Won)
	assert.Equal(t, 0, c.View().Life)
	assert.Equal(t, "Game over! You lose!", c.View().Message)
}

func TestConnectionLostMidGame(t *testing.T) {
	c, srv, _ := connected(t)
	require.NoError(t, c.RequestMatch("alice"))
	srv.expect(t, "alice")

	srv.send(t, "0\n2\n")
	pump(t, c, func(v View) bool { return v.Turn })
	srv.conn.Close()

	pump(t, c, func(v View) bool { return v.State == StateDisconnected })
	assert.False(t, c.View().Turn)
	assert.Nil(t, c.Updates())
	require.ErrorIs(t, c.ShootOpponent(), ErrNotYourTurn)
}

func TestOutOfPlaceMessagesAreIgnored(t *testing.T) {
	c, srv, _ := connected(t)
	require.NoError(t, c.RequestMatch("alice"))
	srv.expect(t, "alice")

	// YourTurn and GameOver before GameStart, then garbage.
	srv.send(t, "2\n1 1\nhello\n9\n3\n0\n3 3\n")
	pump(t, c, func(v View) bool { return v.Life == 3 })
	v := c.View()
	assert.Equal(t, StateInGame, v.State)
	assert.False(t, v.Turn)
	assert.False(t, v.Won)
}

func TestRequestMatchOutsideLobby(t *testing.T) {
	c := New(func(context.Context) (network.Conn, error) {
		return nil, errors.New("unused")
	}, Options{}, hclog.NewNullLogger())
	require.ErrorIs(t, c.RequestMatch("alice"), ErrNotConnected)

	c2, srv, _ := connected(t)
	require.NoError(t, c2.RequestMatch("alice"))
	srv.expect(t, "alice")
	require.ErrorIs(t, c2.RequestMatch("alice"), ErrInvalidTransition)
	require.ErrorIs(t, c2.ReturnToLobby(context.Background()), ErrInvalidTransition)
}

func TestDialerTransports(t *testing.T) {
	_, err := Dialer("udp", StaticAddr("x"))
	require.Error(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Write([]byte("0\n"))
			conn.Close()
		}
	}()

	dial, err := Dialer("tcp", StaticAddr(ln.Addr().String()))
	require.NoError(t, err)
	conn, err := dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	line, err := network.NewLineConn(conn, 0).ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "0", line)

	failing, err := Dialer("ws", func() (string, error) { return "", errors.New("no healthy instance") })
	require.NoError(t, err)
	_, err = failing(context.Background())
	require.ErrorContains(t, err, "no healthy instance")
}
