package main

import (
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"tilecraft.ai/internal/client"
	"tilecraft.ai/internal/logging"
	"tilecraft.ai/internal/netclient"
	"tilecraft.ai/internal/persistence/profile"
	"tilecraft.ai/internal/sim/catalogs"
	"tilecraft.ai/internal/sim/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:25565", "relay address (host:port for tcp, ws://host:port/v1/ws for websocket)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data/bot", "profile directory (money.txt, inventory.txt)")
		seed       = flag.Int64("seed", 0, "bot rng seed (0: time based)")
		actions    = flag.Float64("actions_per_sec", 2, "how often the bot picks a new action")
		duration   = flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
		offline    = flag.Bool("offline", false, "do not connect to a relay")
	)
	flag.Parse()

	log := logging.New("bot")

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
		log.WithError(err).Info("tuning unavailable; using defaults")
		tune = tuning.Defaults()
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	store := profile.NewStore(*dataDir)
	saves := profile.NewWriter(store, log)
	e := client.New(client.Config{
		Tuning:       tune,
		Catalogs:     cats,
		Profile:      store,
		ProfileSaves: saves,
		Log:          log,
	})

	ctx, cancel := signalContext()
	defer cancel()
	if *duration > 0 {
		var c2 context.CancelFunc
		ctx, c2 = context.WithTimeout(ctx, *duration)
		defer c2()
	}

	var conn *netclient.Conn
	if !*offline {
		conn, _ = netclient.Attach(ctx, e, *addr, 3*time.Second, netclient.Options{Log: log})
	}

	b := &bot{
		e:       e,
		rng:     rand.New(rand.NewSource(*seed)),
		limiter: rate.NewLimiter(rate.Limit(*actions), 1),
		tune:    tune,
		log:     log,
	}
	b.run(ctx, conn, tune.TickRateHz)

	saves.Close()
	if err := e.SaveProfile(); err != nil {
		log.WithError(err).Warn("save profile")
	}
	if conn != nil {
		_ = conn.Close()
		conn.Wait()
	}
	log.WithFields(logrus.Fields{"ticks": e.Ticks(), "money": e.Money()}).Info("bot stopped")
}

type bot struct {
	e       *client.Engine
	rng     *rand.Rand
	limiter *rate.Limiter
	tune    tuning.Tuning
	log     logrus.FieldLogger
}

// run drives the engine at hz until ctx is done. The engine goes offline when the relay hangs up.
func (b *bot) run(ctx context.Context, conn *netclient.Conn, hz int) {
	if hz <= 0 {
		hz = 60
	}
	t := time.NewTicker(time.Second / time.Duration(hz))
	defer t.Stop()

	var connDone <-chan struct{}
	if conn != nil {
		connDone = conn.Done()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-connDone:
			b.log.Warn("relay connection lost; continuing offline")
			b.e.SetSender(nil)
			connDone = nil
		case now := <-t.C:
			if b.limiter.Allow() {
				b.act()
			}
			b.e.Tick(now)
		}
	}
}

// act picks one scripted action: wander, mine or place next to the player, or change color.
func (b *bot) act() {
	e := b.e
	e.ReleasePrimary()
	e.ReleaseSecondary()

	switch n := b.rng.Intn(10); {
	case n < 4:
		e.SetDirection(b.rng.Intn(3)-1, b.rng.Intn(3)-1)
		if b.rng.Intn(8) == 0 {
			e.RequestDash()
		}
	case n < 7:
		e.SetDirection(0, 0)
		b.aimNextTo()
		e.PressPrimary()
	case n < 9:
		e.SetDirection(0, 0)
		e.SelectHotbar(b.rng.Intn(client.HotbarSize))
		b.aimNextTo()
		e.PressSecondary()
	default:
		e.CycleColor()
	}
}

// aimNextTo points at a random tile adjacent to the player.
func (b *bot) aimNextTo() {
	dx, dy := b.rng.Intn(3)-1, b.rng.Intn(3)-1
	if dx == 0 && dy == 0 {
		dx = 1
	}
	vw, vh, ts := b.tune.Viewport[0], b.tune.Viewport[1], b.tune.TileSize
	b.e.SetPointer(vw/2+dx*ts, vh/2+dy*ts)
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
