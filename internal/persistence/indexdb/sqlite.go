package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"tilecraft.ai/internal/protocol"
	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/tuning"
)

// SQLiteIndex is a secondary, queryable index of relay activity. Writes are queued and applied by
// one writer goroutine in batched transactions; the traffic log stays the source of truth.
type SQLiteIndex struct {
	db  *sql.DB
	run string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropSessionTotal  atomic.Uint64
	dropEditTotal     atomic.Uint64
	dropSnapshotTotal atomic.Uint64
}

type reqKind int

const (
	reqJoin reqKind = iota + 1
	reqLeave
	reqEdit
	reqSnapshot
	reqBarrier
)

type req struct {
	kind reqKind

	session  int
	remote   string
	at       time.Time
	edit     editRow
	snapshot snapshotRow
	done     chan struct{}
}

type editRow struct {
	X, Y, Type int
}

type snapshotRow struct {
	Path          string
	Entries       int
	NextStorageID int
}

func OpenSQLite(path, run string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		run: run,
		// Sized for bursts of block edits from many clients.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER NOT NULL,
			run TEXT NOT NULL,
			remote TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			left_at TEXT,
			PRIMARY KEY (run, id)
		);`,
		`CREATE TABLE IF NOT EXISTS block_edits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run TEXT NOT NULL,
			session INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			type INTEGER NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_block_edits_pos ON block_edits(x, y, seq);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			path TEXT PRIMARY KEY,
			run TEXT NOT NULL,
			entries INTEGER NOT NULL,
			next_storage_id INTEGER NOT NULL,
			at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// enqueue drops the request when the writer has fallen behind.
func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) SessionJoined(id int, remote string, at time.Time) {
	s.enqueue(req{kind: reqJoin, session: id, remote: remote, at: at}, &s.dropSessionTotal)
}

func (s *SQLiteIndex) SessionLeft(id int, at time.Time) {
	s.enqueue(req{kind: reqLeave, session: id, at: at}, &s.dropSessionTotal)
}

// Accepted indexes BLOCK edits; every other verb is ignored.
func (s *SQLiteIndex) Accepted(session int, m protocol.Message, at time.Time) {
	if m.Verb != protocol.VerbBlock {
		return
	}
	s.enqueue(req{
		kind:    reqEdit,
		session: session,
		at:      at,
		edit:    editRow{X: m.Arg(0), Y: m.Arg(1), Type: m.Arg(2)},
	}, &s.dropEditTotal)
}

func (s *SQLiteIndex) RecordSnapshot(path string, entries, nextStorageID int, at time.Time) {
	s.enqueue(req{
		kind:     reqSnapshot,
		at:       at,
		snapshot: snapshotRow{Path: path, Entries: entries, NextStorageID: nextStorageID},
	}, &s.dropSnapshotTotal)
}

// Flush blocks until every request queued before it has been committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqBarrier, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertCatalogs records the digests of the catalogs and tuning the relay runs with.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := ts(time.Now())

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.IDs()); len(b) > 0 {
		rows = append(rows, kv{name: "blocks", digest: cats.Items.BlocksDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Items.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "items", digest: cats.Items.ItemsDigest, json: b})
	}
	if b, _ := json.Marshal(cats.Smelting); len(b) > 0 {
		rows = append(rows, kv{name: "smelting", digest: cats.Smelting.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertJoin, _ := s.db.Prepare(`INSERT OR REPLACE INTO sessions(id,run,remote,joined_at) VALUES(?,?,?,?)`)
	updateLeave, _ := s.db.Prepare(`UPDATE sessions SET left_at=? WHERE run=? AND id=?`)
	insertEdit, _ := s.db.Prepare(`INSERT INTO block_edits(run,session,x,y,type,at) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(path,run,entries,next_storage_id,at) VALUES(?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertJoin, updateLeave, insertEdit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	handle := func(r req) {
		if r.kind == reqBarrier {
			commit()
			close(r.done)
			return
		}
		begin()
		if tx == nil {
			return
		}
		switch r.kind {
		case reqJoin:
			exec(insertJoin, r.session, s.run, r.remote, ts(r.at))
		case reqLeave:
			exec(updateLeave, ts(r.at), s.run, r.session)
		case reqEdit:
			exec(insertEdit, s.run, r.session, r.edit.X, r.edit.Y, r.edit.Type, ts(r.at))
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.Path, s.run, sn.Entries, sn.NextStorageID, ts(r.at))
		}
		if opCount >= commitEvery {
			commit()
		}
	}

	// The writer shares the only connection with readers, so an idle transaction is committed on
	// a timer rather than held until the next write.
	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()
	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			handle(r)
		case <-ticker.C:
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		}
	}
}
