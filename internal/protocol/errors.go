package protocol

import (
	"errors"
	"fmt"
)

const (
	ErrProtoBadRequest  = "E_PROTO_BAD_REQUEST"
	ErrProtoUnknownVerb = "E_PROTO_UNKNOWN_VERB"
	ErrProtoArity       = "E_PROTO_ARITY"
	ErrProtoBadInt      = "E_PROTO_BAD_INT"
	ErrProtoTooLong     = "E_PROTO_TOO_LONG"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrProtoUnknownVerb: {},
	ErrProtoArity:       {},
	ErrProtoBadInt:      {},
	ErrProtoTooLong:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ParseError is returned for a line that cannot be decoded. The line should be dropped and the
// connection kept.
type ParseError struct {
	Code string
	Verb string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Verb == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Verb, e.Msg)
}

// CodeOf returns the ParseError code carried by err, or "" if err is not a parse error.
func CodeOf(err error) string {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
