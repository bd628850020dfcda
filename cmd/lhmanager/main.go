// Command lhmanager runs the liquid-handling workstation orchestrator: it
// restores the bed, sample and waste state from snapshots, opens the history
// stores, and serves the robot and operator HTTP surfaces while the
// scheduler reconciles tasks against the external runner.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/roadmap-automation/lh-manager-sub000/internal/blob"
	"github.com/roadmap-automation/lh-manager-sub000/internal/config"
	"github.com/roadmap-automation/lh-manager-sub000/internal/httpapi"
	"github.com/roadmap-automation/lh-manager-sub000/internal/lhinterface"
	"github.com/roadmap-automation/lh-manager-sub000/internal/metrics"
	"github.com/roadmap-automation/lh-manager-sub000/internal/persistence"
	"github.com/roadmap-automation/lh-manager-sub000/internal/scheduler"
	"github.com/roadmap-automation/lh-manager-sub000/internal/snapshot"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lhmanager:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.StageNames) > 0 {
		stages := make([]samples.StageName, len(cfg.StageNames))
		for i, name := range cfg.StageNames {
			stages[i] = samples.StageName(name)
		}
		samples.DefaultStages = stages
	}

	stores, err := persistence.Open(ctx, cfg.StorageDriver, cfg.SQLiteDir, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("opening history stores: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Error("closing history stores", "error", err)
		}
	}()

	store, err := blob.Open(ctx, cfg.BlobDriver, cfg.BlobFSRoot)
	if err != nil {
		return fmt.Errorf("opening snapshot store: %w", err)
	}
	snapshots := snapshot.NewManager(store, logger)

	layout, container, wasteLayout, err := restoreState(ctx, cfg, snapshots)
	if err != nil {
		return err
	}

	wasteMgr := &waste.Manager{
		Layout:    wasteLayout,
		History:   stores,
		Snapshots: snapshots,
	}

	m := metrics.New()
	iface := lhinterface.NewInterface(layout, wasteMgr, stores, logger)
	iface.OnActivation(func(*lhinterface.LHJob) { m.SetInterfaceState(string(iface.State())) })
	iface.OnValidation(func(*lhinterface.LHJob) { m.SetInterfaceState(string(iface.State())) })
	iface.OnResult(func(job *lhinterface.LHJob) {
		m.SetInterfaceState(string(iface.State()))
		if err := snapshots.SaveLayout(ctx, layout); err != nil {
			logger.Error("saving layout snapshot", "error", err)
		}
	})
	m.SetInterfaceState(string(iface.State()))

	catalog, err := snapshots.LoadDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices snapshot: %w", err)
	}
	sched := scheduler.New(scheduler.Options{
		Runner:    scheduler.NewRunnerClient(cfg.RunnerURL, m),
		Container: container,
		Layout:    layout,
		Devices:   catalog,
		Waste:     wasteMgr,
		History:   stores,
		Snapshots: snapshots,
		Metrics:   m,
		Logger:    logger,
		PollDelay: cfg.PollDelay,
		Channels:  cfg.Channels,
	})
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			logger.Error("stopping scheduler", "error", err)
		}
	}()

	if err := sched.SubmitInitTasks(ctx); err != nil {
		logger.Warn("announcing devices to runner", "error", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/", httpapi.NewHandler(iface, sched, container, layout, logger))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "runner", cfg.RunnerURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	saveCtx, cancelSave := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSave()
	if err := snapshots.SaveLayout(saveCtx, layout); err != nil {
		logger.Error("saving layout snapshot", "error", err)
	}
	if err := snapshots.SaveSamples(saveCtx, container); err != nil {
		logger.Error("saving samples snapshot", "error", err)
	}
	if err := snapshots.SaveDevices(saveCtx, catalog); err != nil {
		logger.Error("saving devices snapshot", "error", err)
	}
	if err := snapshots.SaveWaste(saveCtx, wasteLayout); err != nil {
		logger.Error("saving waste snapshot", "error", err)
	}
	return nil
}

// restoreState loads the layout, sample container and waste layout from the
// snapshot store, honoring the noload flags.
func restoreState(ctx context.Context, cfg config.Config, snapshots *snapshot.Manager) (*bedlayout.LHBedLayout, *samples.SampleContainer, *waste.WasteLayout, error) {
	layout := bedlayout.DefaultLayout()
	if !cfg.NoLoadLayout {
		loaded, err := snapshots.LoadLayout(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading layout snapshot: %w", err)
		}
		layout = loaded
	}

	container := samples.NewSampleContainer()
	if !cfg.NoLoadSamples {
		loaded, err := snapshots.LoadSamples(ctx)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("loading samples snapshot: %w", err)
		}
		container = loaded
	}

	wasteLayout, err := snapshots.LoadWaste(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading waste snapshot: %w", err)
	}
	return layout, container, wasteLayout, nil
}
