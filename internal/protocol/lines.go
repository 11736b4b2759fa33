package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// MaxLineBytes is the default cap on one inbound line, excluding the line terminator.
const MaxLineBytes = 4 * 1024

// LineReader splits a byte stream into protocol lines. A line longer than its cap is skipped up to
// the next newline and reported as a *ParseError with code E_PROTO_TOO_LONG; the reader stays
// usable, so callers count the reject and keep reading.
type LineReader struct {
	r   *bufio.Reader
	max int
}

func NewLineReader(r io.Reader, limit int) *LineReader {
	if limit <= 0 {
		limit = MaxLineBytes
	}
	// Room for the line plus "\r\n".
	return &LineReader{r: bufio.NewReaderSize(r, limit+2), max: limit}
}

// ReadLine returns the next line without its terminator. A final unterminated line is returned
// before io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	b, err := lr.r.ReadSlice('\n')
	switch {
	case err == nil:
		return lr.check(trimEOL(b))
	case errors.Is(err, bufio.ErrBufferFull):
		if err := lr.skip(); err != nil {
			return "", err
		}
		return "", lr.tooLong()
	case errors.Is(err, io.EOF) && len(b) > 0:
		return lr.check(trimEOL(b))
	default:
		return "", err
	}
}

func (lr *LineReader) check(b []byte) (string, error) {
	if len(b) > lr.max {
		return "", lr.tooLong()
	}
	return string(b), nil
}

func (lr *LineReader) tooLong() error {
	return &ParseError{Code: ErrProtoTooLong, Msg: fmt.Sprintf("line exceeds %d bytes", lr.max)}
}

// skip discards the rest of the current line.
func (lr *LineReader) skip() error {
	for {
		_, err := lr.r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func trimEOL(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}
