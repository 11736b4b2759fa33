package main

import (
	"testing"
	"time"

	persistlog "tilecraft.ai/internal/persistence/log"
	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/relay"
)

func TestReplayRebuildsDiffStore(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewTrafficLogger(dir, "run-1")
	t0 := time.Now().UTC()
	lines := []protocol.Message{
		protocol.New(protocol.VerbBlock, 3, 4, 11),
		protocol.New(protocol.VerbCont, 3, 4, 0, 3, 5, 0),
		protocol.New(protocol.VerbPos, 100, 100),
		protocol.New(protocol.VerbHulcsID, 9),
		protocol.New(protocol.VerbHulcsData, 9, 2, 201, 1, 0),
		protocol.New(protocol.VerbBlock, 3, 4, 0),
	}
	for i, m := range lines {
		if err := l.WriteLine(1+i%2, m, t0.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := persistlog.ListTrafficFiles(persistlog.TrafficDir(dir))
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}

	store := relay.NewDiffStore()
	sum, err := replayFiles(store, files, replayOptions{Until: t0.Add(4 * time.Second)})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if sum.Lines != 6 || sum.Skipped != 1 || sum.Applied != 4 || len(sum.Sessions) != 2 {
		t.Fatalf("summary=%+v", sum)
	}
	if got, _ := store.Block(3, 4); got != 11 {
		t.Fatalf("block=%d want 11 (later clear is past -until)", got)
	}
	if store.NextStorageID() != 10 {
		t.Fatalf("next storage=%d", store.NextStorageID())
	}

	want := relay.NewDiffStore()
	for _, m := range lines[:5] {
		want.Replay(m)
	}
	if diff := compare(store.Export("", time.Time{}), want.Export("x", t0)); diff != "" {
		t.Fatalf("compare: %s", diff)
	}
	want.Apply(protocol.New(protocol.VerbBlock, 1, 1, 3))
	if diff := compare(store.Export("", time.Time{}), want.Export("x", t0)); diff == "" {
		t.Fatalf("compare missed an extra block")
	}
}
