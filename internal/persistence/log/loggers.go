package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"tilecraft.ai/internal/protocol"
)

// JSONLZstdWriter appends one JSON object per line to hourly rotated zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines into the current zstd frame.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TrafficEntry is one accepted upstream line.
type TrafficEntry struct {
	At      time.Time `json:"at"`
	Run     string    `json:"run"`
	Session int       `json:"session"`
	Line    string    `json:"line"`
}

const trafficPrefix = "traffic"

// TrafficLogger records every accepted line under <dataDir>/traffic. It satisfies the relay's
// Recorder interface; write failures are counted rather than returned.
type TrafficLogger struct {
	run string
	w   *JSONLZstdWriter

	writeErrors atomic.Uint64
}

func NewTrafficLogger(dataDir, run string) *TrafficLogger {
	return &TrafficLogger{run: run, w: NewJSONLZstdWriter(TrafficDir(dataDir), trafficPrefix)}
}

func TrafficDir(dataDir string) string { return filepath.Join(dataDir, "traffic") }

func (l *TrafficLogger) WriteLine(session int, m protocol.Message, at time.Time) error {
	return l.w.Write(TrafficEntry{At: at.UTC(), Run: l.run, Session: session, Line: m.String()})
}

func (l *TrafficLogger) SessionJoined(int, string, time.Time) {}
func (l *TrafficLogger) SessionLeft(int, time.Time)           {}

func (l *TrafficLogger) Accepted(session int, m protocol.Message, at time.Time) {
	if err := l.WriteLine(session, m, at); err != nil {
		l.writeErrors.Add(1)
	}
}

// WriteErrors is the number of lines lost to write failures.
func (l *TrafficLogger) WriteErrors() uint64 { return l.writeErrors.Load() }

func (l *TrafficLogger) Flush() error { return l.w.Flush() }
func (l *TrafficLogger) Close() error { return l.w.Close() }

// ListTrafficFiles returns the traffic files in dir in chronological order.
func ListTrafficFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, trafficPrefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadTraffic streams the entries of one traffic file to fn, stopping at the first error.
func ReadTraffic(path string, fn func(TrafficEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e TrafficEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
