package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	persistlog "ratpet.ai/internal/persistence/log"
	"ratpet.ai/internal/sim/desktop"
	"ratpet.ai/internal/sim/tuning"
	"ratpet.ai/internal/sim/world"
	"ratpet.ai/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", "127.0.0.1:8080", "http listen address")
		worldID     = flag.String("world", "ratpet", "world id")
		seed        = flag.Int64("seed", 0, "behavior seed (0: use tuning.yaml, then the clock)")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		desktopPath = flag.String("desktop", "", "path to desktop.yaml (default: <configs>/desktop.yaml)")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite index")
		watch       = flag.Bool("watch", true, "apply settings from tuning.yaml when it changes")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	dp := strings.TrimSpace(*desktopPath)
	if dp == "" {
		dp = filepath.Join(*configDir, "desktop.yaml")
	}

	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
		tune.Normalize()
		*watch = false
	}
	start := time.Now()
	if *seed != 0 {
		tune.Seed = *seed
	}
	if tune.Seed == 0 {
		tune.Seed = start.UnixNano()
	}

	layout, err := desktop.LoadLayout(dp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load desktop: %v", err)
		}
		logger.Printf("desktop not found (%s); using a single default monitor", dp)
		layout = desktop.DefaultLayout()
	}
	host := layout.BuildHost()

	runID := uuid.NewString()
	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	runDir := filepath.Join(worldDir, "runs", runID)
	if err := persistlog.WriteRunConfig(runDir, persistlog.RunConfig{Tuning: tune, Desktop: layout}); err != nil {
		logger.Fatalf("write run config: %v", err)
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if digest, err := idx.UpsertTuning(tune); err != nil {
			logger.Printf("index backend: upsert tuning: %v", err)
		} else {
			logger.Printf("tuning digest=%s", digest)
		}
		registerIndexMetrics(idx)
	}

	w, err := world.New(world.Config{
		ID:       *worldID,
		Tuning:   tune,
		Windows:  host,
		Monitors: host,
		Pointer:  host,
		Self:     host.Self,
		Overlay:  host.Overlay,
		Start:    start,
		Log:      logger,
	})
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetRunID(runID)

	tickLog := persistlog.NewTickLogger(runDir)
	defer tickLog.Close()
	sinks := persistlog.Fanout{tickLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	w.SetTickLogger(sinks)

	obsSrv := observer.NewServer(w, host, logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(w, obsSrv, idx, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Printf("run %s listening on %s (seed=%d)", runID, *addr, tune.Seed)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		return srv.Shutdown(ctx2)
	})
	if *watch {
		g.Go(func() error {
			return tuning.Watch(gctx, tp, func(t tuning.Tuning) {
				s := t.Settings
				select {
				case w.Commands() <- world.Command{Type: world.CmdSetSettings, Settings: &s}:
					logger.Printf("settings reloaded from %s", tp)
				default:
					logger.Printf("settings reload dropped: command queue full")
				}
			}, func(err error) {
				logger.Printf("tuning watch: %v", err)
			})
		})
	}

	if err := g.Wait(); err != nil {
		logger.Printf("stopped: %v", err)
	}

	var endTick uint64
	if t := w.CurrentTick(); t > 0 {
		endTick = t - 1
	}
	if idx != nil {
		idx.RecordRunEnd(runID, endTick, w.Digest(), w.Agent().State.String())
	}
	logger.Printf("run %s ended at tick %d digest=%s", runID, endTick, w.Digest())
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
