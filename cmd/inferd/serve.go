package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"inferd/internal/backend"
	"inferd/internal/cache"
	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/health"
	"inferd/internal/httpapi"
	"inferd/internal/orchestrator"
	"inferd/internal/service"
	"inferd/internal/task"
	"inferd/internal/tier"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := buildLogger(cfg)

	dataDir, err := fsutil.EnsureDir(cfg.DataDir)
	if err != nil {
		return err
	}

	catalog, err := tier.NewCatalog(cfg.Tiers)
	if err != nil {
		return err
	}

	perf, err := orchestrator.OpenPerfStore(filepath.Join(dataDir, "perf.db"))
	if err != nil {
		return err
	}
	defer perf.Close()

	client := backend.NewHTTPClient(time.Duration(cfg.Orchestrator.InferTimeoutSec) * time.Second)
	orch := orchestrator.New(orchestrator.Config{
		Catalog:     catalog,
		Client:      client,
		Perf:        perf,
		IdleTimeout: time.Duration(cfg.Orchestrator.IdleTimeoutSec) * time.Second,
		LoadTimeout: time.Duration(cfg.Orchestrator.LoadTimeoutSec) * time.Second,
		RestartWait: time.Duration(cfg.Orchestrator.RestartWaitSec) * time.Second,
		Logger:      log,
	})

	respCache := cache.Open(cache.Config{
		HotCapacity:         cfg.Cache.HotCapacity,
		WarmPath:            filepath.Join(dataDir, "cache.db"),
		WarmMaxEntries:      cfg.Cache.WarmMaxEntries,
		TTL:                 time.Duration(cfg.Cache.TTLSec) * time.Second,
		SimilarityThreshold: cfg.Cache.SimilarityThreshold,
		MinResponseLen:      cfg.Cache.MinResponseLen,
		Logger:              log,
	})
	defer respCache.Close()

	ledger, err := health.OpenLedger(filepath.Join(dataDir, "health.db"))
	if err != nil {
		return err
	}
	defer ledger.Close()

	taskStore, err := task.OpenStore(filepath.Join(dataDir, "tasks.db"))
	if err != nil {
		return err
	}
	defer taskStore.Close()

	// baseCtx bounds all background work; canceled on the first signal.
	baseCtx, stop := context.WithCancel(context.Background())
	defer stop()

	monitor := health.New(health.Config{
		Interval:       time.Duration(cfg.Health.IntervalSec) * time.Second,
		CriticalAfter:  cfg.Health.CriticalAfter,
		HealAttemptCap: cfg.Health.HealAttemptCap,
		Logger:         log,
	}, ledger)
	registerProbes(monitor, cfg, dataDir, catalog, orch, respCache, perf, taskStore, ledger)

	svc := service.New(baseCtx, service.Config{
		Orchestrator: orch,
		Cache:        respCache,
		Monitor:      monitor,
		Ledger:       ledger,
		Logger:       log,
	}, taskStore, cfg.Task.StepRetryCap)

	if n, err := svc.Tasks().RecoverInterrupted(baseCtx); err != nil {
		log.Warn().Err(err).Msg("event=task_recovery_failed")
	} else if n > 0 {
		log.Info().Int("tasks", n).Msg("event=tasks_recovered_as_paused")
	}

	for _, r := range orch.Preflight(baseCtx) {
		if !r.Reachable {
			ev := log.Warn().Str("tier", r.TierID).Str("error", r.Error)
			if r.Substitute != "" {
				ev = ev.Str("substitute", r.Substitute)
			}
			ev.Msg("event=tier_unreachable")
		}
	}

	if cfg.WarmDefaultTier {
		t := catalog.Select(0)
		if err := orch.Warm(baseCtx, t.ID); err != nil {
			log.Warn().Str("tier", t.ID).Err(err).Msg("event=warm_default_failed")
		}
	}

	go orch.StartJanitor(baseCtx)
	go respCache.StartSweeper(baseCtx, time.Duration(cfg.Cache.SweepIntervalSec)*time.Second)
	go monitor.Start(baseCtx)

	httpapi.SetLogger(log)
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetQueryTimeoutSeconds(int64(cfg.Orchestrator.InferTimeoutSec))
	srv := &http.Server{Addr: cfg.Addr, Handler: httpapi.NewMux(svc)}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("data_dir", dataDir).Msg("event=listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// First signal: pause tasks at their step boundaries and shut down
	// gracefully. Second signal: force exit.
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("event=shutdown_started")
	}
	svc.Tasks().InterruptAll()
	stop()

	go func() {
		s := <-sig
		log.Error().Str("signal", s.String()).Msg("event=forced_exit")
		os.Exit(1)
	}()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("event=shutdown_error")
	}
	log.Info().Msg("event=shutdown_complete")
	return nil
}

// registerProbes wires the health checks and their remediations.
func registerProbes(
	m *health.Monitor,
	cfg config.Config,
	dataDir string,
	catalog *tier.Catalog,
	orch *orchestrator.Orchestrator,
	respCache *cache.Cache,
	perf *orchestrator.PerfStore,
	taskStore *task.Store,
	ledger *health.Ledger,
) {
	// Backend reachability, probed against the cheapest tier. Remediation
	// sheds stale instances, then restarts the backend process when the tier
	// carries a restart command; the next probe round observes the result.
	cheapest := catalog.Select(0)
	m.Register(health.BackendProbe("backend", func(ctx context.Context) error {
		return orch.Ping(ctx, cheapest.ID)
	}), func(ctx context.Context) error {
		orch.UnloadAll()
		if cheapest.RestartCmd != "" {
			return orch.RestartBackend(ctx, cheapest.ID)
		}
		return nil
	})

	// Cache warm store: integrity plus the degraded flag. Remediation
	// recreates the schema; cached data is expendable.
	m.Register(health.StoreProbe("cache_store", func() error {
		if degraded, reason := respCache.Degraded(); degraded {
			return errors.New("degraded: " + reason)
		}
		return respCache.IntegrityCheck()
	}), func(ctx context.Context) error {
		return respCache.Reinit(ctx)
	})

	m.Register(health.StoreProbe("perf_store", perf.IntegrityCheck), nil)
	m.Register(health.StoreProbe("task_store", taskStore.IntegrityCheck), nil)
	m.Register(health.StoreProbe("health_store", ledger.IntegrityCheck), nil)

	m.Register(health.DiskProbe(dataDir, cfg.Health.DiskMinFreeMB), func(ctx context.Context) error {
		respCache.Sweep(ctx)
		return nil
	})

	// Memory pressure sheds everything reloadable.
	m.Register(health.MemoryProbe(cfg.Health.MemMaxAllocMB), func(ctx context.Context) error {
		orch.UnloadAll()
		respCache.ClearHot()
		return nil
	})
}
