package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tilecraft.ai/internal/logging"
	"tilecraft.ai/internal/persistence/indexdb"
	persistlog "tilecraft.ai/internal/persistence/log"
	"tilecraft.ai/internal/relay"
	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/tuning"
	"tilecraft.ai/internal/transport/admin"
	"tilecraft.ai/internal/transport/tcp"
)

func main() {
	var (
		addr       = flag.String("addr", "", "tcp listen address for game clients (default: :<relay.port> from tuning)")
		httpAddr   = flag.String("http", ":8080", "http listen address for health, metrics, admin and ws (empty to disable)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index")
		noTraffic  = flag.Bool("disable_traffic_log", false, "disable the zstd traffic log")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
		snapEvery  = flag.Duration("snapshot_every", time.Minute, "periodic Diff Store snapshot interval (0 disables; one is always written on shutdown)")

		announce = flag.Bool("announce_departures", false, "broadcast LEAVE <id> when a client disconnects (overrides tuning when set)")
	)
	flag.Parse()

	runID := uuid.NewString()
	log := logging.New("relay").WithField("run", runID)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		log.WithError(err).Warn("load catalogs; using embedded defaults")
		cats = catalogs.MustDefault()
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Fatal("load tuning")
		}
		log.WithField("path", tp).Info("tuning not found; using defaults")
		tune = tuning.Defaults()
	}
	announceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "announce_departures" {
			announceSet = true
		}
	})
	if !announceSet {
		*announce = tune.Relay.AnnounceDepartures
	}
	listen := strings.TrimSpace(*addr)
	if listen == "" {
		listen = ":" + strconv.Itoa(tune.Relay.Port)
	}

	snapDir := filepath.Join(*dataDir, "snapshots")
	store := relay.NewDiffStore()
	if err := restoreStore(store, strings.TrimSpace(*snapPath), snapDir, *loadLatest, log); err != nil {
		log.WithError(err).Fatal("restore snapshot")
	}

	var recs relay.Recorders
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "relay.sqlite"), runID)
		if err != nil {
			log.WithError(err).Fatal("open index")
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			log.WithError(err).Warn("index: upsert catalogs")
		}
		recs = append(recs, idx)
	}
	var traffic *persistlog.TrafficLogger
	if !*noTraffic {
		traffic = persistlog.NewTrafficLogger(*dataDir, runID)
		defer traffic.Close()
		recs = append(recs, traffic)
	}

	var opts []relay.Option
	if len(recs) > 0 {
		opts = append(opts, relay.WithRecorder(recs))
	}
	r := relay.New(relay.Config{AnnounceDepartures: *announce}, store, log, opts...)

	ctx, cancel := signalContext()
	defer cancel()

	snaps := &snapshotter{dir: snapDir, runID: runID, store: store, idx: idx, log: log}
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		snaps.run(ctx, *snapEvery)
	}()

	tcpSrv := tcp.NewServer(r, tcp.Config{}, log)
	tcpDone := make(chan error, 1)
	go func() { tcpDone <- tcpSrv.ListenAndServe(ctx, listen) }()
	log.WithFields(logrus.Fields{"addr": listen, "announce_departures": *announce}).Info("relay listening")

	var httpSrv *http.Server
	if h := strings.TrimSpace(*httpAddr); h != "" {
		enableAdmin := envBool("TC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
		ro := admin.Options{
			Run:         runID,
			Relay:       r,
			Log:         log,
			EnableAdmin: enableAdmin,
			EnableWS:    envBool("TC_ENABLE_WS", true),
			Snapshot:    snaps.take,
		}
		if idx != nil {
			ro.Index = idx
			ro.Querier = idx.Querier()
		}
		if traffic != nil {
			ro.TrafficWriteErrors = traffic.WriteErrors
		}
		httpSrv = &http.Server{
			Addr:              h,
			Handler:           admin.NewRouter(ro),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("http server stopped")
				cancel()
			}
		}()
		log.WithField("addr", h).Info("http listening")
	}

	tcpStopped := false
	select {
	case <-ctx.Done():
	case err := <-tcpDone:
		tcpStopped = true
		if err != nil {
			log.WithError(err).Error("tcp server stopped")
		}
		cancel()
	}

	if httpSrv != nil {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpSrv.Shutdown(ctx2)
		cancel2()
	}
	if !tcpStopped {
		select {
		case <-tcpDone:
		case <-time.After(5 * time.Second):
			log.Warn("tcp server did not stop in time")
		}
	}
	<-snapDone
	if _, err := snaps.take(time.Now()); err != nil {
		log.WithError(err).Error("final snapshot")
	}
	if traffic != nil {
		if err := traffic.Flush(); err != nil {
			log.WithError(err).Warn("flush traffic log")
		}
	}
	if idx != nil {
		ctx3, cancel3 := context.WithTimeout(context.Background(), 5*time.Second)
		if err := idx.Flush(ctx3); err != nil {
			log.WithError(err).Warn("flush index")
		}
		cancel3()
	}
	log.Info("relay stopped")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
