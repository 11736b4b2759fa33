package log

import (
	"path/filepath"
	"testing"
	"time"

	"tilecraft.ai/internal/protocol"
)

func TestTrafficLogger_RotatesHourlyAndReadsBack(t *testing.T) {
	dir := t.TempDir()
	l := NewTrafficLogger(dir, "run-1")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	if err := l.WriteLine(1, protocol.New(protocol.VerbBlock, 1, 2, 3), clock); err != nil {
		t.Fatalf("write: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteLine(2, protocol.New(protocol.VerbPos, 4, 5), clock); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteLine(2, protocol.New(protocol.VerbHulcsID, 7), clock); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListTrafficFiles(TrafficDir(dir))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v want 2 hourly files", files)
	}
	if filepath.Base(files[0]) != "traffic-2026-03-01-10.jsonl.zst" {
		t.Fatalf("first file=%s", filepath.Base(files[0]))
	}

	var got []TrafficEntry
	for _, f := range files {
		if err := ReadTraffic(f, func(e TrafficEntry) error {
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 3 {
		t.Fatalf("entries=%d want 3", len(got))
	}
	if got[0].Line != "BLOCK 1 2 3" || got[0].Session != 1 || got[0].Run != "run-1" {
		t.Fatalf("entry0=%+v", got[0])
	}
	if got[2].Line != "HULCS_ID 7" || !got[2].At.Equal(clock) {
		t.Fatalf("entry2=%+v", got[2])
	}
}

func TestListTrafficFiles_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "other")
	if err := w.Write(map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	files, err := ListTrafficFiles(dir)
	if err != nil || len(files) != 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
}
