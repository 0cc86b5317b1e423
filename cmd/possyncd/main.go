package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tindahan-pos/config"
	"tindahan-pos/internal/client"
	"tindahan-pos/internal/connectivity"
	"tindahan-pos/internal/handler"
	"tindahan-pos/internal/identity"
	"tindahan-pos/internal/possync"
	"tindahan-pos/internal/server"
	"tindahan-pos/internal/store"
	"tindahan-pos/internal/syncer"
	"tindahan-pos/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == server.ReleaseMode {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	logger.SetGlobalLogger(l)

	st, err := store.Open(cfg.DataDir, cfg.DatabaseFile)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A crash mid-pass leaves records stuck in SYNCING; put them back in
	// line. Replays are safe, the server de-duplicates on the key.
	if reset, err := st.ResetStuckSyncing(ctx); err != nil {
		log.Fatalf("Failed to recover in-flight records: %v", err)
	} else if reset > 0 {
		l.Warnf("recovered %d records stuck in SYNCING from a previous run", reset)
	}

	api := client.New(cfg.APIBaseURL, cfg.HealthPath, cfg.APITimeout)
	probe := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
		defer cancel()
		return api.ProbeHealth(ctx)
	}
	monitor := connectivity.NewMonitor(probe, cfg.ProbeInterval, l)
	provider := identity.NewProvider(st)

	coord := syncer.NewCoordinator(st, api, monitor, syncer.Options{
		Debounce:       cfg.SyncDebounce,
		InterItemDelay: cfg.InterItemDelay,
		SyncInterval:   cfg.SyncInterval,
		ReconnectDelay: cfg.ReconnectDelay,
		CleanupGrace:   cfg.CleanupGrace,
		Backoff:        syncer.NewBackoff(cfg.BackoffBase, cfg.BackoffMax),
	}, l)

	// Reconnecting is the moment to drain; give the link a beat to settle
	// before the first pass.
	monitor.OnChange(func(online bool) {
		if online {
			coord.KickAfterReconnect()
		}
	})

	service := possync.NewService(st, provider, coord, monitor, l)

	srv := server.New(cfg, l)
	srv.RegisterRoutes(server.Handlers{
		Queue:        handler.NewQueueHandler(service),
		Sync:         handler.NewSyncHandler(service, l),
		Connectivity: handler.NewConnectivityHandler(service),
	})

	go monitor.Run(ctx)
	go coord.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			l.Errorf("shutdown: %v", err)
		}
	}()

	if deviceID, err := provider.DeviceID(ctx); err == nil {
		l.Infof("device %s ready", deviceID)
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
