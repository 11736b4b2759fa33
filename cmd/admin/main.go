// Command admin inspects a relay's data directory and talks to a running relay's admin routes.
//
//	admin [snapshots] -data ./data        list snapshot files, newest last
//	admin inspect -snapshot path           summarize one snapshot
//	admin db sessions|edits|snapshots      query the sqlite index
//	admin state|history|snapshot -url ...  call the loopback admin HTTP routes
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tilecraft.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "snapshots":
			listCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "history":
			historyCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("snapshots", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "snapshots")
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap.zst") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Println(filepath.Join(dir, n))
	}
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	snapPath := fs.String("snapshot", "", "snapshot path (optional; defaults to latest)")
	verbose := fs.Bool("v", false, "print every entry")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*snapPath)
	if path == "" {
		p, err := snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest snapshot:", err)
			os.Exit(2)
		}
		path = p
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Print(describe(path, snap, *verbose))
}

// describe renders a snapshot summary; verbose adds one line per entry in replay order.
func describe(path string, snap snapshot.SnapshotV1, verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: v%d run=%s taken_at=%s\n", filepath.Base(path), snap.Header.Version, snap.Header.Run, snap.Header.TakenAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&b, "blocks=%d cont=%d storage=%d next_storage_id=%d\n", len(snap.Blocks), len(snap.Cont), len(snap.Storage), snap.NextStorageID)
	if !verbose {
		return b.String()
	}
	for _, e := range snap.Blocks {
		fmt.Fprintf(&b, "BLOCK %d %d %d\n", e.X, e.Y, e.Type)
	}
	for _, e := range snap.Cont {
		fmt.Fprintf(&b, "CONT %d %d %d %d %d %d\n", e.X, e.Y, e.Slot, e.ID, e.Count, e.Aux)
	}
	for _, e := range snap.Storage {
		fmt.Fprintf(&b, "HULCS_DATA %d %d %d %d %d\n", e.StorageID, e.Slot, e.ID, e.Count, e.Aux)
	}
	return b.String()
}
