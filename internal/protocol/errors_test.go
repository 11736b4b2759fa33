package protocol

import (
	"fmt"
	"testing"
)

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoUnknownVerb,
		ErrProtoArity,
		ErrProtoBadInt,
		ErrProtoTooLong,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestCodeOf_Wrapped(t *testing.T) {
	_, err := Parse(Upstream, "POS 1")
	wrapped := fmt.Errorf("session 3: %w", err)
	if got := CodeOf(wrapped); got != ErrProtoArity {
		t.Fatalf("CodeOf=%q want %q", got, ErrProtoArity)
	}
	if got := CodeOf(fmt.Errorf("io")); got != "" {
		t.Fatalf("CodeOf(non-parse)=%q", got)
	}
}
