package indexdb

import (
	"context"
	"database/sql"
	"fmt"
)

type SessionRow struct {
	ID       int    `json:"id"`
	Run      string `json:"run"`
	Remote   string `json:"remote"`
	JoinedAt string `json:"joined_at"`
	LeftAt   string `json:"left_at,omitempty"`
}

type EditRow struct {
	Seq     int64  `json:"seq"`
	Run     string `json:"run"`
	Session int    `json:"session"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Type    int    `json:"type"`
	At      string `json:"at"`
}

type SnapshotRow struct {
	Path          string `json:"path"`
	Run           string `json:"run"`
	Entries       int    `json:"entries"`
	NextStorageID int    `json:"next_storage_id"`
	At            string `json:"at"`
}

// Querier is the read side of the index. *sql.DB opened on the same file works, so tools can
// query an index that a running relay is writing.
type Querier struct {
	db *sql.DB
}

func NewQuerier(db *sql.DB) *Querier { return &Querier{db: db} }

// OpenQuerier opens an index file for tools. It only ever issues SELECTs.
func OpenQuerier(path string) (*Querier, func() error, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}
	return &Querier{db: db}, db.Close, nil
}

// Querier returns a reader sharing the writer's connection.
func (s *SQLiteIndex) Querier() *Querier { return &Querier{db: s.db} }

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

// Sessions lists the most recent sessions first.
func (q *Querier) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id,run,remote,joined_at,COALESCE(left_at,'') FROM sessions ORDER BY joined_at DESC, id DESC LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()
	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.ID, &r.Run, &r.Remote, &r.JoinedAt, &r.LeftAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BlockHistory lists the edits of one cell, newest first.
func (q *Querier) BlockHistory(ctx context.Context, x, y, limit int) ([]EditRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT seq,run,session,x,y,type,at FROM block_edits WHERE x=? AND y=? ORDER BY seq DESC LIMIT ?`,
		x, y, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query block history: %w", err)
	}
	defer rows.Close()
	var out []EditRow
	for rows.Next() {
		var r EditRow
		if err := rows.Scan(&r.Seq, &r.Run, &r.Session, &r.X, &r.Y, &r.Type, &r.At); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (q *Querier) Snapshots(ctx context.Context, limit int) ([]SnapshotRow, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT path,run,entries,next_storage_id,at FROM snapshots ORDER BY at DESC LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		if err := rows.Scan(&r.Path, &r.Run, &r.Entries, &r.NextStorageID, &r.At); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
