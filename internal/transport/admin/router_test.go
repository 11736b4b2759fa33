package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tilecraft.ai/internal/logging"
	"tilecraft.ai/internal/persistence/indexdb"
	"tilecraft.ai/internal/relay"
)

type nopPeer struct{}

func (nopPeer) Send(string) bool { return true }

func do(t *testing.T, h http.Handler, path, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const local = "127.0.0.1:40000"

func TestRouter_HealthAndMetrics(t *testing.T) {
	r := relay.New(relay.Config{}, nil, logging.Discard())
	s := r.Join(nopPeer{}, "test")
	r.Handle(s, "BLOCK 1 2 3")
	r.Handle(s, "BLOCK 1")
	h := NewRouter(Options{Relay: r, Log: logging.Discard()})

	if rec := do(t, h, "/healthz", "10.1.1.1:1"); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}

	rec := do(t, h, "/metrics", "10.1.1.1:1")
	body := rec.Body.String()
	for _, want := range []string{
		"tilecraft_relay_sessions 1\n",
		`tilecraft_relay_diff_entries{kind="block"} 1`,
		`tilecraft_relay_lines_rejected_total{code="E_PROTO_ARITY"} 1`,
		"tilecraft_relay_next_storage_id 1\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}

	if rec := do(t, h, "/admin/v1/state", local); rec.Code != http.StatusNotFound {
		t.Fatalf("admin routes should be unmounted, got %d", rec.Code)
	}
}

func TestRouter_AdminState(t *testing.T) {
	r := relay.New(relay.Config{}, nil, logging.Discard())
	r.Join(nopPeer{}, "a")
	r.Join(nopPeer{}, "b")
	h := NewRouter(Options{Run: "run-1", Relay: r, Log: logging.Discard(), EnableAdmin: true})

	if rec := do(t, h, "/admin/v1/state", "203.0.113.9:1"); rec.Code != http.StatusForbidden {
		t.Fatalf("remote state: %d", rec.Code)
	}
	rec := do(t, h, "/admin/v1/state", local)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: %d", rec.Code)
	}
	var got struct {
		Run      string      `json:"run"`
		Sessions []int       `json:"session_ids"`
		Relay    relay.Stats `json:"relay"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Run != "run-1" || len(got.Sessions) != 2 || got.Sessions[0] != 1 || got.Relay.Joins != 2 {
		t.Fatalf("state=%+v", got)
	}
}

func TestRouter_BlockHistory(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "relay.sqlite"), "run-h")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	r := relay.New(relay.Config{}, nil, logging.Discard(), relay.WithRecorder(idx))
	s := r.Join(nopPeer{}, "a")
	r.Handle(s, "BLOCK 7 8 3")
	r.Handle(s, "BLOCK 7 8 0")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	h := NewRouter(Options{Relay: r, Index: idx, Querier: idx.Querier(), EnableAdmin: true})
	if rec := do(t, h, "/admin/v1/blocks/x/8/history", local); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad coords: %d", rec.Code)
	}
	rec := do(t, h, "/admin/v1/blocks/7/8/history", local)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d %s", rec.Code, rec.Body.String())
	}
	var got struct {
		Current *int              `json:"current"`
		Edits   []indexdb.EditRow `json:"edits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Current == nil || *got.Current != 0 {
		t.Fatalf("current=%v", got.Current)
	}
	if len(got.Edits) != 2 || got.Edits[0].Type != 0 || got.Edits[1].Type != 3 {
		t.Fatalf("edits=%+v", got.Edits)
	}
}

func TestRouter_SnapshotOnDemand(t *testing.T) {
	r := relay.New(relay.Config{}, nil, logging.Discard())
	post := func(h http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/v1/snapshot", nil)
		req.RemoteAddr = local
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(NewRouter(Options{Relay: r, EnableAdmin: true})); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("without snapshotter: %d", rec.Code)
	}

	var calls int
	h := NewRouter(Options{Relay: r, EnableAdmin: true, Snapshot: func(time.Time) (string, error) {
		calls++
		return "/data/snapshots/x.snap.zst", nil
	}})
	rec := post(h)
	if rec.Code != http.StatusOK || calls != 1 {
		t.Fatalf("snapshot: %d calls=%d", rec.Code, calls)
	}
	if !strings.Contains(rec.Body.String(), `"path":"/data/snapshots/x.snap.zst"`) {
		t.Fatalf("body=%s", rec.Body.String())
	}
	if rec := do(t, h, "/admin/v1/snapshot", local); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot: %d", rec.Code)
	}
}
