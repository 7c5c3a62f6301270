package network

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// DefaultMaxLineLength bounds a single protocol line, the handshake name included.
const DefaultMaxLineLength = 1024

// ErrLineTooLong is returned when a peer sends more than the line limit
// without a newline. The stream cannot be resynchronised after it.
var ErrLineTooLong = errors.New("line too long")

// Conn is the byte stream under a player. net.Conn satisfies it, as does WSConn.
type Conn interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
	SetReadDeadline(t time.Time) error
}

// LineConn frames a Conn into newline-delimited lines. A read may deliver
// several lines and a partial one; the partial tail is kept until its
// newline arrives.
type LineConn struct {
	conn    Conn
	maxLine int

	buf     []byte
	chunk   []byte
	readErr error

	wmu sync.Mutex
}

func NewLineConn(c Conn, maxLine int) *LineConn {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineLength
	}
	return &LineConn{
		conn:    c,
		maxLine: maxLine,
		chunk:   make([]byte, 1024),
	}
}

// ReadLine blocks until one non-blank line is available and returns it.
// Anything read past that line stays buffered for the next call.
func (l *LineConn) ReadLine() (string, error) {
	for {
		line, ok, err := l.next()
		if err != nil {
			return "", err
		}
		if ok {
			return line, nil
		}
		if err := l.fill(); err != nil {
			return "", err
		}
	}
}

// ReadLines blocks until at least one non-blank line is available and
// returns every complete line buffered so far, in arrival order.
func (l *LineConn) ReadLines() ([]string, error) {
	for {
		var lines []string
		for {
			line, ok, err := l.next()
			if err != nil {
				// The offending fragment stays buffered, so the next call
				// reports the error again.
				if len(lines) > 0 {
					return lines, nil
				}
				return nil, err
			}
			if !ok {
				break
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			return lines, nil
		}
		if err := l.fill(); err != nil {
			return nil, err
		}
	}
}

func (l *LineConn) next() (string, bool, error) {
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			if len(l.buf) > l.maxLine {
				return "", false, ErrLineTooLong
			}
			return "", false, nil
		}
		if i > l.maxLine {
			return "", false, ErrLineTooLong
		}
		line := strings.TrimRight(string(l.buf[:i]), "\r")
		l.buf = l.buf[i+1:]
		if strings.TrimSpace(line) == "" {
			continue
		}
		return line, true, nil
	}
}

func (l *LineConn) fill() error {
	if l.readErr != nil {
		return l.readErr
	}
	n, err := l.conn.Read(l.chunk)
	if n > 0 {
		l.buf = append(l.buf, l.chunk[:n]...)
	}
	if err != nil {
		if n > 0 {
			l.readErr = err
			return nil
		}
		return err
	}
	return nil
}

// WriteLine sends s followed by a newline.
func (l *LineConn) WriteLine(s string) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	_, err := io.WriteString(l.conn, s+"\n")
	return err
}

func (l *LineConn) WriteMessage(m Message) error {
	return l.WriteLine(m.String())
}

func (l *LineConn) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

func (l *LineConn) RemoteAddr() net.Addr {
	return l.conn.RemoteAddr()
}

func (l *LineConn) Close() error {
	return l.conn.Close()
}
