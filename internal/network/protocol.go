package network

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformed is returned for lines that do not decode into a known message.
var ErrMalformed = errors.New("malformed message")

// ServerOp is an opcode sent from the server to a client.
type ServerOp int

const (
	OpGameStart ServerOp = iota
	OpGameOver
	OpYourTurn
	OpUpdateLife
	OpUpdateBullet
)

// ClientOp is an opcode sent from a client to the server.
type ClientOp int

const (
	OpShootOpponent ClientOp = iota
	OpShootSelf
)

var serverArity = map[ServerOp]int{
	OpGameStart:    0,
	OpGameOver:     1,
	OpYourTurn:     0,
	OpUpdateLife:   1,
	OpUpdateBullet: 2,
}

var clientArity = map[ClientOp]int{
	OpShootOpponent: 0,
	OpShootSelf:     0,
}

func (op ServerOp) String() string {
	switch op {
	case OpGameStart:
		return "GameStart"
	case OpGameOver:
		return "GameOver"
	case OpYourTurn:
		return "YourTurn"
	case OpUpdateLife:
		return "UpdateLife"
	case OpUpdateBullet:
		return "UpdateBullet"
	default:
		return fmt.Sprintf("ServerOp(%d)", int(op))
	}
}

func (op ClientOp) String() string {
	switch op {
	case OpShootOpponent:
		return "ShootOpponent"
	case OpShootSelf:
		return "ShootSelf"
	default:
		return fmt.Sprintf("ClientOp(%d)", int(op))
	}
}

// Line is the wire form of a client command, without the trailing newline.
func (op ClientOp) Line() string {
	return strconv.Itoa(int(op))
}

// Message is one server to client message: "<opcode>[ <arg>...]".
type Message struct {
	Op   ServerOp
	Args []int
}

func GameStart() Message { return Message{Op: OpGameStart} }

func GameOver(winner bool) Message {
	flag := 0
	if winner {
		flag = 1
	}
	return Message{Op: OpGameOver, Args: []int{flag}}
}

func YourTurn() Message { return Message{Op: OpYourTurn} }

func UpdateLife(life int) Message { return Message{Op: OpUpdateLife, Args: []int{life}} }

// UpdateBullet reports the slots left in the chamber and the number of live
// rounds it was loaded with.
func UpdateBullet(slots, live int) Message {
	return Message{Op: OpUpdateBullet, Args: []int{slots, live}}
}

func (m Message) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(m.Op)))
	for _, a := range m.Args {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Itoa(a))
	}
	return sb.String()
}

// Frame is a syntactically valid line: a numeric opcode and integer arguments.
type Frame struct {
	Op   int
	Args []int
}

// ParseFrame splits a line into opcode and integer arguments. The opcode must
// be a non-negative decimal number.
func ParseFrame(line string) (Frame, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Frame{}, fmt.Errorf("%w: empty line", ErrMalformed)
	}
	if !isDigits(parts[0]) {
		return Frame{}, fmt.Errorf("%w: opcode %q is not a number", ErrMalformed, parts[0])
	}
	op, err := strconv.Atoi(parts[0])
	if err != nil {
		return Frame{}, fmt.Errorf("%w: opcode %q: %v", ErrMalformed, parts[0], err)
	}

	f := Frame{Op: op}
	for _, p := range parts[1:] {
		arg, err := strconv.Atoi(p)
		if err != nil {
			return Frame{}, fmt.Errorf("%w: argument %q is not an integer", ErrMalformed, p)
		}
		f.Args = append(f.Args, arg)
	}
	return f, nil
}

// DecodeMessage parses a server to client line.
func DecodeMessage(line string) (Message, error) {
	f, err := ParseFrame(line)
	if err != nil {
		return Message{}, err
	}
	op := ServerOp(f.Op)
	want, ok := serverArity[op]
	if !ok {
		return Message{}, fmt.Errorf("%w: unknown server opcode %d", ErrMalformed, f.Op)
	}
	if len(f.Args) != want {
		return Message{}, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformed, op, want, len(f.Args))
	}
	return Message{Op: op, Args: f.Args}, nil
}

// DecodeCommand parses a client to server line.
func DecodeCommand(line string) (ClientOp, error) {
	f, err := ParseFrame(line)
	if err != nil {
		return 0, err
	}
	op := ClientOp(f.Op)
	want, ok := clientArity[op]
	if !ok {
		return 0, fmt.Errorf("%w: unknown client opcode %d", ErrMalformed, f.Op)
	}
	if len(f.Args) != want {
		return 0, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformed, op, want, len(f.Args))
	}
	return op, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
