package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"backstage/internal/api"
	"backstage/internal/clock"
	"backstage/internal/config"
	"backstage/internal/game"
	"backstage/internal/notify"
	"backstage/internal/remote"
	"backstage/internal/save"
	"backstage/internal/sim"
	"backstage/internal/store"
)

func main() {
	// 1. Parse Flags
	// We add flags to override config.yaml values
	simulate := flag.Bool("simulate", false, "Dry run: advance the industry simulation headless and exit")
	weeks := flag.Int("weeks", 52, "Weeks to simulate in -simulate mode")
	provider := flag.String("provider", "", "Override storage provider (sqlite, file)")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// 2. Load Config
	cfg := config.Load()

	// 3. Apply Flag Overrides
	if *provider != "" {
		cfg.Storage.Provider = *provider
	}

	if *simulate {
		log.Println("🧪 MODE: DRY RUN / SIMULATION")
		log.Println("   - No API, no websocket")
		log.Println("   - Storage will NOT be touched")
		runSimulation(cfg, *weeks)
		return
	}

	log.Println("🚀 Starting Backstage Game Server...")

	// 4. Metrics
	save.RegisterMetrics()
	clock.RegisterMetrics()
	sim.RegisterMetrics()
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		log.Printf("📊 Metrics on %s/metrics", cfg.Server.MetricsPort)
		if err := http.ListenAndServe(cfg.Server.MetricsPort, nil); err != nil {
			log.Printf("⚠️ Metrics server stopped: %v", err)
		}
	}()

	// 5. Init Infrastructure
	st := store.New(cfg)
	hub := api.NewHub()
	notifier := notify.Multi{notify.LogNotifier{}, hub}

	// 6. Build the engine: clock -> simulation -> session -> coordinator.
	// Everything gets its collaborators passed in explicitly.
	simClock := clock.New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), clock.RealClock{})
	industry := sim.New(cfg.Sim.Seed, cfg.Sim.EventChance)
	session := game.NewSession(simClock, industry, st, notifier)

	rotation := save.NewRotation(st, cfg.Save.BackupKeep)
	coordinator := save.NewCoordinator(st, rotation, session, notifier, save.Options{
		Debounce:   time.Duration(cfg.Save.DebounceMs) * time.Millisecond,
		Attempts:   cfg.Save.RetryAttempts,
		Backoff:    time.Duration(cfg.Save.RetryBackoffMs) * time.Millisecond,
		PendingCap: cfg.Save.PendingCap,
		RemotePush: cfg.Save.RemotePush,
	})
	session.SetEventSink(coordinator.OnEvent)
	session.AttachHooks()

	var syncer *remote.Syncer
	if cfg.Remote.Enabled {
		adapter := remote.NewS3Adapter(cfg)
		coordinator.SetRemote(adapter)
		syncer = &remote.Syncer{Store: st, Adapter: adapter}
		log.Println("☁️ Cloud sync enabled")
	}

	// 7. Clock loop (only advances in auto mode)
	if cfg.Clock.Mode == "auto" {
		simClock.SetMode(clock.Auto)
		simClock.SetSpeed(cfg.Clock.Speed)
	} else {
		simClock.SetMode(clock.Manual)
	}
	stopTicks := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Clock.TickMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				simClock.Tick()
			case <-stopTicks:
				return
			}
		}
	}()

	// 8. Flush the save on shutdown (the server analog of the browser's
	// unload handler).
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("👋 Shutting down, flushing save...")
		close(stopTicks)
		if err := coordinator.SaveNow(); err != nil {
			log.Printf("❌ Final save failed: %v", err)
		}
		os.Exit(0)
	}()

	// 9. API
	server := api.New(cfg, session, coordinator, st, industry, simClock, syncer, hub)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("❌ API server failed: %v", err)
	}
}

// runSimulation drives the industry alone for a number of simulated weeks
// and prints where the market ended up. Useful for tuning trend templates.
func runSimulation(cfg *config.Config, weeks int) {
	industry := sim.New(cfg.Sim.Seed, cfg.Sim.EventChance)
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for d := 0; d < weeks*7; d++ {
		date = date.AddDate(0, 0, 1)
		if err := industry.RunDaily(date); err != nil {
			log.Printf("⚠️ Daily pass failed: %v", err)
		}
	}

	log.Printf("📅 Simulated %d weeks, final mood %.2f", weeks, industry.Mood())
	for genre, t := range industry.Trends() {
		log.Printf("   🎵 %-10s strength %.2f direction %+d (%d days left)",
			genre, t.Strength, t.Direction, t.DaysRemaining)
	}
	releases, _ := industry.DrainOutputs()
	log.Printf("   💿 %d NPC releases, %d events archived in trend history",
		len(releases), len(industry.TrendHistory()))
}
