package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tilecraft.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/relay.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	x := fs.Int("x", 0, "tile x (edits)")
	y := fs.Int("y", 0, "tile y (edits)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "relay.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "index:", err)
		os.Exit(2)
	}

	qr, closeDB, err := indexdb.OpenQuerier(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out, err := runQuery(ctx, qr, q, *x, *y, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func runQuery(ctx context.Context, qr *indexdb.Querier, q string, x, y, limit int) (any, error) {
	switch q {
	case "snapshots":
		return qr.Snapshots(ctx, limit)
	case "sessions":
		return qr.Sessions(ctx, limit)
	case "edits", "history":
		return qr.BlockHistory(ctx, x, y, limit)
	default:
		return nil, fmt.Errorf("unknown query %q (want snapshots, sessions or edits)", q)
	}
}
