// Package protocol is the line protocol spoken between clients and the relay.
//
// Each message is one newline-terminated ASCII line: a verb followed by space-separated integer
// arguments. Some verbs carry a different argument list depending on direction (MONEY amount
// upstream, MONEY id amount downstream), so parsing is always done for a known direction.
package protocol

import (
	"strconv"
	"strings"
)

// Verbs.
const (
	VerbPos       = "POS"
	VerbMoney     = "MONEY"
	VerbColor     = "COLOR"
	VerbDrop      = "DROP"
	VerbCont      = "CONT"
	VerbBlock     = "BLOCK"
	VerbHulcsData = "HULCS_DATA"
	VerbHulcsID   = "HULCS_ID"
	VerbHit       = "HIT"

	VerbLogin  = "LOGIN"
	VerbPlayer = "PLAYER"
	VerbDamage = "DAMAGE"
	VerbLeave  = "LEAVE"
)

type Direction int

const (
	// Upstream is client to relay.
	Upstream Direction = iota
	// Downstream is relay to client.
	Downstream
)

func (d Direction) String() string {
	if d == Downstream {
		return "downstream"
	}
	return "upstream"
}

var upstreamArity = map[string]int{
	VerbPos:       2, // x y
	VerbMoney:     1, // amount
	VerbColor:     3, // r g b
	VerbDrop:      4, // id data x y
	VerbCont:      6, // x y slot id count data
	VerbBlock:     3, // x y type
	VerbHulcsData: 5, // hid slot id count data
	VerbHulcsID:   1, // n
	VerbHit:       2, // target damage
}

var downstreamArity = map[string]int{
	VerbLogin:     2, // id nextHulcsId
	VerbPlayer:    3, // id x y
	VerbMoney:     2, // id amount
	VerbColor:     4, // id r g b
	VerbDrop:      4,
	VerbCont:      6,
	VerbBlock:     3,
	VerbHulcsData: 5,
	VerbHulcsID:   1,
	VerbDamage:    1, // damage
	VerbLeave:     1, // id
}

func arityTable(d Direction) map[string]int {
	if d == Downstream {
		return downstreamArity
	}
	return upstreamArity
}

// Arity returns the argument count of verb in direction d.
func Arity(d Direction, verb string) (int, bool) {
	n, ok := arityTable(d)[verb]
	return n, ok
}

// Message is one decoded protocol line.
type Message struct {
	Verb string
	Args []int
}

func New(verb string, args ...int) Message {
	return Message{Verb: verb, Args: args}
}

// String encodes the message without the trailing newline.
func (m Message) String() string {
	var b strings.Builder
	b.Grow(len(m.Verb) + 8*len(m.Args))
	b.WriteString(m.Verb)
	for _, a := range m.Args {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(a))
	}
	return b.String()
}

// Arg returns argument i or 0 when absent.
func (m Message) Arg(i int) int {
	if i < 0 || i >= len(m.Args) {
		return 0
	}
	return m.Args[i]
}

// Line is shorthand for New(verb, args...).String().
func Line(verb string, args ...int) string {
	return New(verb, args...).String()
}

// Parse decodes one line sent in direction d. Surrounding whitespace and a trailing CR are ignored.
func Parse(d Direction, line string) (Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Message{}, &ParseError{Code: ErrProtoBadRequest, Msg: "empty line"}
	}
	verb := fields[0]
	want, ok := Arity(d, verb)
	if !ok {
		return Message{}, &ParseError{Code: ErrProtoUnknownVerb, Verb: verb, Msg: "unknown " + d.String() + " verb"}
	}
	if got := len(fields) - 1; got != want {
		return Message{}, &ParseError{
			Code: ErrProtoArity,
			Verb: verb,
			Msg:  "want " + strconv.Itoa(want) + " args, got " + strconv.Itoa(got),
		}
	}
	args := make([]int, want)
	for i := range args {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return Message{}, &ParseError{Code: ErrProtoBadInt, Verb: verb, Msg: "arg " + strconv.Itoa(i) + ": " + fields[i+1]}
		}
		args[i] = v
	}
	return Message{Verb: verb, Args: args}, nil
}
