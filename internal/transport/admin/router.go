// Package admin is the relay's HTTP surface: health, Prometheus metrics, loopback-only inspection
// routes and the WebSocket bridge.
package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/persistence/indexdb"
	"tilecraft.ai/internal/relay"
	"tilecraft.ai/internal/transport/ws"
)

type Options struct {
	Run   string
	Relay *relay.Relay
	Log   logrus.FieldLogger

	// Index and Querier are optional; without them history returns 503.
	Index   *indexdb.SQLiteIndex
	Querier *indexdb.Querier

	// TrafficWriteErrors reports traffic log write failures, if a traffic log is running.
	TrafficWriteErrors func() uint64
	// Snapshot writes a Diff Store snapshot now and returns its path. Without it POST snapshot
	// returns 503.
	Snapshot func(now time.Time) (string, error)

	// EnableAdmin mounts the /admin/v1 routes.
	EnableAdmin bool
	// EnableWS mounts /v1/ws.
	EnableWS bool
}

func NewRouter(o Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	r.Get("/metrics", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, o)
	})

	if o.EnableWS {
		r.Get("/v1/ws", ws.NewServer(o.Relay, o.Log).Handler())
	}

	if o.EnableAdmin {
		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(loopbackOnly)
			r.Get("/state", stateHandler(o))
			r.Get("/blocks/{x}/{y}/history", historyHandler(o))
			r.Post("/snapshot", snapshotHandler(o))
		})
	} else if o.Log != nil {
		o.Log.Info("admin endpoints disabled (TC_ENABLE_ADMIN_HTTP=false)")
	}
	return r
}

func stateHandler(o Options) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		resp := struct {
			Run      string         `json:"run"`
			Sessions []int          `json:"session_ids"`
			Relay    relay.Stats    `json:"relay"`
			Index    *indexdb.Stats `json:"index,omitempty"`
		}{
			Run:      o.Run,
			Sessions: o.Relay.Sessions(),
			Relay:    o.Relay.Stats(),
		}
		sort.Ints(resp.Sessions)
		if o.Index != nil {
			st := o.Index.Stats()
			resp.Index = &st
		}
		respondJSON(rw, http.StatusOK, resp)
	}
}

func snapshotHandler(o Options) http.HandlerFunc {
	return func(rw http.ResponseWriter, _ *http.Request) {
		if o.Snapshot == nil {
			respondJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "snapshots disabled"})
			return
		}
		path, err := o.Snapshot(time.Now())
		if err != nil {
			respondJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		respondJSON(rw, http.StatusOK, map[string]any{"ok": true, "path": path, "entries": o.Relay.Store().Len()})
	}
}

func historyHandler(o Options) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		x, errX := strconv.Atoi(chi.URLParam(r, "x"))
		y, errY := strconv.Atoi(chi.URLParam(r, "y"))
		if errX != nil || errY != nil {
			respondJSON(rw, http.StatusBadRequest, map[string]string{"error": "x and y must be integers"})
			return
		}
		if o.Querier == nil {
			respondJSON(rw, http.StatusServiceUnavailable, map[string]string{"error": "index disabled"})
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := o.Querier.BlockHistory(r.Context(), x, y, limit)
		if err != nil {
			respondJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if rows == nil {
			rows = []indexdb.EditRow{}
		}
		resp := struct {
			X       int               `json:"x"`
			Y       int               `json:"y"`
			Current *int              `json:"current,omitempty"`
			Edits   []indexdb.EditRow `json:"edits"`
		}{X: x, Y: y, Edits: rows}
		if cur, ok := o.Relay.Store().Block(x, y); ok {
			resp.Current = &cur
		}
		respondJSON(rw, http.StatusOK, resp)
	}
}

// Minimal Prometheus exposition format.
func writeMetrics(w io.Writer, o Options) {
	st := o.Relay.Stats()

	fmt.Fprintf(w, "# HELP tilecraft_relay_sessions Connected sessions.\n")
	fmt.Fprintf(w, "# TYPE tilecraft_relay_sessions gauge\n")
	fmt.Fprintf(w, "tilecraft_relay_sessions %d\n", st.Sessions)

	fmt.Fprintf(w, "# HELP tilecraft_relay_joins_total Sessions accepted since start.\n")
	fmt.Fprintf(w, "# TYPE tilecraft_relay_joins_total counter\n")
	fmt.Fprintf(w, "tilecraft_relay_joins_total %d\n", st.Joins)

	fmt.Fprintf(w, "# HELP tilecraft_relay_diff_entries Cached Diff Store entries by kind.\n")
	fmt.Fprintf(w, "# TYPE tilecraft_relay_diff_entries gauge\n")
	for _, k := range sortedKeys(st.DiffEntries) {
		fmt.Fprintf(w, "tilecraft_relay_diff_entries{kind=%q} %d\n", k, st.DiffEntries[k])
	}

	fmt.Fprintf(w, "# HELP tilecraft_relay_lines_accepted_total Inbound lines parsed successfully.\n")
	fmt.Fprintf(w, "# TYPE tilecraft_relay_lines_accepted_total counter\n")
	fmt.Fprintf(w, "tilecraft_relay_lines_accepted_total %d\n", st.LinesAccepted)

	fmt.Fprintf(w, "# HELP tilecraft_relay_lines_relayed_total Outbound lines queued to peers.\n")
	fmt.Fprintf(w, "# TYPE tilecraft_relay_lines_relayed_total counter\n")
	fmt.Fprintf(w, "tilecraft_relay_lines_relayed_total %d\n", st.LinesRelayed)

	fmt.Fprintf(w, "# HELP tilecraft_relay_lines_rejected_total Inbound lines dropped by reason.\n")
	fmt.Fprintf(w, "# TYPE tilecraft_relay_lines_rejected_total counter\n")
	for _, code := range sortedKeys(st.LinesRejected) {
		fmt.Fprintf(w, "tilecraft_relay_lines_rejected_total{code=%q} %d\n", code, st.LinesRejected[code])
	}

	fmt.Fprintf(w, "# HELP tilecraft_relay_next_storage_id Next movable storage id.\n")
	fmt.Fprintf(w, "# TYPE tilecraft_relay_next_storage_id gauge\n")
	fmt.Fprintf(w, "tilecraft_relay_next_storage_id %d\n", st.NextStorageID)

	if o.Index != nil {
		ix := o.Index.Stats()
		fmt.Fprintf(w, "# HELP tilecraft_index_queue_depth Pending index writes.\n")
		fmt.Fprintf(w, "# TYPE tilecraft_index_queue_depth gauge\n")
		fmt.Fprintf(w, "tilecraft_index_queue_depth %d\n", ix.QueueDepth)
		fmt.Fprintf(w, "# HELP tilecraft_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(w, "# TYPE tilecraft_index_dropped_total counter\n")
		fmt.Fprintf(w, "tilecraft_index_dropped_total{kind=%q} %d\n", "session", ix.DropSessionTotal)
		fmt.Fprintf(w, "tilecraft_index_dropped_total{kind=%q} %d\n", "edit", ix.DropEditTotal)
		fmt.Fprintf(w, "tilecraft_index_dropped_total{kind=%q} %d\n", "snapshot", ix.DropSnapshotTotal)
	}
	if o.TrafficWriteErrors != nil {
		fmt.Fprintf(w, "# HELP tilecraft_traffic_write_errors_total Traffic log lines lost to write errors.\n")
		fmt.Fprintf(w, "# TYPE tilecraft_traffic_write_errors_total counter\n")
		fmt.Fprintf(w, "tilecraft_traffic_write_errors_total %d\n", o.TrafficWriteErrors())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func respondJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
