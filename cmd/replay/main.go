package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	persistlog "tilecraft.ai/internal/persistence/log"
	"tilecraft.ai/internal/persistence/snapshot"
	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/relay"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst to start from (optional)")
		trafficDir = flag.String("traffic", "", "traffic dir containing traffic-*.jsonl.zst (optional)")
		verifyPath = flag.String("verify", "", "snapshot the rebuilt Diff Store must match (optional)")
		outPath    = flag.String("out", "", "write the rebuilt Diff Store as a snapshot (optional)")
		until      = flag.String("until", "", "ignore traffic after this RFC3339 time (optional)")
	)
	flag.Parse()

	if *snapPath == "" && *trafficDir == "" {
		fmt.Fprintln(os.Stderr, "need -snapshot and/or -traffic")
		os.Exit(2)
	}

	var opts replayOptions
	if *until != "" {
		t, err := time.Parse(time.RFC3339, *until)
		if err != nil {
			fmt.Fprintln(os.Stderr, "parse -until:", err)
			os.Exit(2)
		}
		opts.Until = t
	}

	store := relay.NewDiffStore()
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		store.Import(snap)
		opts.Since = snap.Header.TakenAt
		fmt.Printf("snapshot v%d run=%s taken_at=%s entries=%d next_storage_id=%d\n",
			snap.Header.Version, snap.Header.Run, snap.Header.TakenAt.Format(time.RFC3339), snap.Len(), snap.NextStorageID)
	}

	var sum summary
	if *trafficDir != "" {
		files, err := persistlog.ListTrafficFiles(*trafficDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list traffic:", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no traffic files found in", *trafficDir)
			os.Exit(1)
		}
		sum, err = replayFiles(store, files, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		printSummary(sum)
	}

	counts := store.CountByKind()
	fmt.Printf("diff store: blocks=%d cont=%d hulcs=%d next_storage_id=%d\n",
		counts[relay.KindBlock], counts[relay.KindCont], counts[relay.KindHulcs], store.NextStorageID())

	if *verifyPath != "" {
		want, err := snapshot.ReadSnapshot(*verifyPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read verify snapshot:", err)
			os.Exit(1)
		}
		if diff := compare(store.Export("", time.Time{}), want); diff != "" {
			fmt.Fprintln(os.Stderr, "verify failed:", diff)
			os.Exit(1)
		}
		fmt.Printf("verify ok against %s\n", filepath.Base(*verifyPath))
	}

	if *outPath != "" {
		if err := snapshot.WriteSnapshot(*outPath, store.Export("replay", time.Now())); err != nil {
			fmt.Fprintln(os.Stderr, "write snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", *outPath)
	}
}

type replayOptions struct {
	// Since skips entries at or before this time (the snapshot already holds them).
	Since time.Time
	// Until skips entries after this time.
	Until time.Time
}

type summary struct {
	Files    int
	Lines    int
	Applied  int
	Skipped  int
	Rejected int
	Sessions map[int]struct{}
	ByVerb   map[string]int
}

// replayFiles feeds every traffic entry in files, in order, into store.
func replayFiles(store *relay.DiffStore, files []string, opts replayOptions) (summary, error) {
	sum := summary{Sessions: map[int]struct{}{}, ByVerb: map[string]int{}}
	for _, path := range files {
		sum.Files++
		err := persistlog.ReadTraffic(path, func(e persistlog.TrafficEntry) error {
			sum.Lines++
			if (!opts.Since.IsZero() && !e.At.After(opts.Since)) || (!opts.Until.IsZero() && e.At.After(opts.Until)) {
				sum.Skipped++
				return nil
			}
			m, err := protocol.Parse(protocol.Upstream, e.Line)
			if err != nil {
				sum.Rejected++
				return nil
			}
			sum.Sessions[e.Session] = struct{}{}
			sum.ByVerb[m.Verb]++
			if store.Replay(m) {
				sum.Applied++
			}
			return nil
		})
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func printSummary(s summary) {
	fmt.Printf("traffic: files=%d lines=%d applied=%d skipped=%d rejected=%d sessions=%d\n",
		s.Files, s.Lines, s.Applied, s.Skipped, s.Rejected, len(s.Sessions))
	verbs := make([]string, 0, len(s.ByVerb))
	for v := range s.ByVerb {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	for _, v := range verbs {
		fmt.Printf("  %-10s %d\n", v, s.ByVerb[v])
	}
}

// compare reports the first difference between the content of two snapshots, ignoring headers.
func compare(got, want snapshot.SnapshotV1) string {
	switch {
	case got.NextStorageID != want.NextStorageID:
		return fmt.Sprintf("next_storage_id got=%d want=%d", got.NextStorageID, want.NextStorageID)
	case !reflect.DeepEqual(nonNil(got.Blocks), nonNil(want.Blocks)):
		return fmt.Sprintf("blocks differ: got=%d want=%d entries", len(got.Blocks), len(want.Blocks))
	case !reflect.DeepEqual(nonNil(got.Cont), nonNil(want.Cont)):
		return fmt.Sprintf("cont differs: got=%d want=%d entries", len(got.Cont), len(want.Cont))
	case !reflect.DeepEqual(nonNil(got.Storage), nonNil(want.Storage)):
		return fmt.Sprintf("storage differs: got=%d want=%d entries", len(got.Storage), len(want.Storage))
	}
	return ""
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
