package main

/*
Measurement service for the roofing CRM. Owns the versioned measurement
snapshots and their offline-resilient save path; everything else (contacts,
projects, payments, auth) lives in the hosted backend and is not touched
here.
*/

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"

	"github.com/ridgelinehq/roofmetrics/pkg/measurecache"
	"github.com/ridgelinehq/roofmetrics/pkg/persistence"
)

var buildtime string

func main() {
	// Initialize zap logging
	log := logger.New("LOGGING_LEVEL")
	defer func(logger *zap.SugaredLogger) {
		err := logger.Sync()
		if err != nil {
			panic(err)
		}
	}(log)

	zap.S().Infof("This is measurement-api build date: %s", buildtime)

	dryRun, err := env.GetAsBool("DRY_RUN", false, false)
	if err != nil {
		zap.S().Fatalf("Failed to get DRY_RUN from env: %s", err)
	}
	queuePath, err := env.GetAsString("QUEUE_PATH", false, "/data/measurement-queue")
	if err != nil {
		zap.S().Fatalf("Failed to get QUEUE_PATH from env: %s", err)
	}
	probeURL, err := env.GetAsString("BACKEND_PROBE_URL", false, "")
	if err != nil {
		zap.S().Fatalf("Failed to get BACKEND_PROBE_URL from env: %s", err)
	}
	apiPort, err := env.GetAsInt("API_PORT", false, 80)
	if err != nil {
		zap.S().Fatalf("Failed to get API_PORT from env: %s", err)
	}
	healthPort, err := env.GetAsInt("HEALTH_PORT", false, 8086)
	if err != nil {
		zap.S().Fatalf("Failed to get HEALTH_PORT from env: %s", err)
	}
	staticMapsKey, err := env.GetAsString("STATIC_MAPS_KEY", false, "")
	if err != nil {
		zap.S().Fatalf("Failed to get STATIC_MAPS_KEY from env: %s", err)
	}

	ctx := context.Background()

	var store persistence.SnapshotStore
	var pgStore *persistence.PostgresStore
	if dryRun {
		zap.S().Infof("Running in DRY_RUN mode, measurements are not persisted")
		store = persistence.NewMemoryStore()
	} else {
		connString, connErr := postgresConnString()
		if connErr != nil {
			zap.S().Fatalf("Failed to assemble postgres configuration: %s", connErr)
		}
		pgStore, err = persistence.NewPostgresStore(ctx, connString)
		if err != nil {
			zap.S().Fatalf("Failed to connect to postgres: %s", err)
		}
		store = pgStore
	}

	queue, err := persistence.OpenOfflineQueue(queuePath)
	if err != nil {
		zap.S().Fatalf("Failed to open offline queue at %s: %s", queuePath, err)
	}

	probe := backendProbe(probeURL, pgStore)
	watcher := persistence.NewNetWatcher(probe, 10*time.Second)

	cache := measurecache.New(measurecache.DefaultExpiration)
	gateway := persistence.NewGateway(store, queue, watcher, cache)

	// replay whatever accumulated while unreachable, on every reconnect
	watcher.OnOnline(func() {
		stats := gateway.Replay(context.Background())
		if stats.Synced+stats.Requeued+stats.Failed > 0 {
			zap.S().Infof("Reconnect replay: %+v", stats)
		}
	})
	watcher.Start()

	// Healthcheck
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	if pgStore != nil {
		health.AddReadinessCheck("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pgStore.Ping(pingCtx)
		})
	}
	go func() {
		/* #nosec G114 */
		herr := http.ListenAndServe(addr(healthPort), health)
		if herr != nil {
			zap.S().Errorf("Error starting healthcheck listener: %s", herr)
		}
	}()

	api := newAPIServer(gateway, store, cache, staticMapsKey)
	go api.run(addr(apiPort))

	// Allow graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigs
	zap.S().Infof("Received signal %s, shutting down", sig)

	watcher.Stop()
	if err = queue.Close(); err != nil {
		zap.S().Errorf("Error closing offline queue: %s", err)
	}
	if pgStore != nil {
		pgStore.Close()
	}
	zap.S().Infof("Successful shutdown. Exiting.")
	_ = log.Sync()
	os.Exit(0)
}

// backendProbe prefers the configured HTTP endpoint and falls back to the
// database ping, so DRY_RUN without a probe URL is always "online".
func backendProbe(probeURL string, pgStore *persistence.PostgresStore) persistence.ProbeFunc {
	if probeURL != "" {
		return persistence.HTTPProbe(probeURL)
	}
	if pgStore != nil {
		return pgStore.Ping
	}
	return func(ctx context.Context) error { return nil }
}
