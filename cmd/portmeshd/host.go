package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"portmesh/internal/catalog"
	"portmesh/internal/config"
	"portmesh/internal/persistence"
	"portmesh/internal/pluginhost"
	"portmesh/internal/registry"
	"portmesh/internal/tracing"
	"portmesh/internal/transport"
)

// errNoExtensionsLoaded maps to exit code 1 per spec.md §6: "1 if zero
// extensions loaded".
var errNoExtensionsLoaded = errors.New("no extensions loaded")

type hostOptions struct {
	searchDirs  []string
	graphPath   string
	catalogPath string
	saveOnExit  bool
	cfg         *config.Config
}

// runHost drives one process lifetime of the triad: scan, load, discover
// ports, apply the saved connection graph (if any), run every extension,
// and on a clean shutdown persist the graph back out.
func runHost(ctx context.Context, opts hostOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx)
	if err != nil {
		return fmt.Errorf("set up tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// Every log line from this run carries the same run_id, so operators
	// grepping a shared log stream can isolate one portmeshd invocation.
	runID := uuid.NewString()
	logger := slog.Default().With("run_id", runID)
	slog.SetDefault(logger)

	searchDirs := opts.searchDirs
	if len(searchDirs) == 0 {
		searchDirs = opts.cfg.SearchDirs
	}
	graphPath := opts.graphPath
	if graphPath == "" {
		graphPath = opts.cfg.ResolvedGraphPath()
	}
	catalogPath := opts.catalogPath
	if catalogPath == "" {
		catalogPath = opts.cfg.ResolvedCatalogPath()
	}

	cat, err := catalog.Open(catalogPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = cat.Close() }()

	mgr := pluginhost.New(
		pluginhost.WithLogger(logger),
		pluginhost.WithScanObserver(func(path string, loaded bool, reason string) {
			if err := cat.Record(path, loaded, reason); err != nil {
				logger.Warn("catalog record failed", "path", path, "err", err)
			}
		}),
	)
	for _, dir := range searchDirs {
		mgr.AddSearchDir(dir)
	}

	if !mgr.ScanAndLoad(ctx) {
		if diag := mgr.Diagnostics(); diag != nil {
			logger.Error("no extensions loaded", "err", diag)
		} else {
			logger.Error("no extensions loaded", "searchDirs", searchDirs)
		}
		return errNoExtensionsLoaded
	}
	defer mgr.UnloadAll(context.Background())

	reg := registry.New(registry.WithLogger(logger))
	mgr.DiscoverPortsForAll(ctx, reg)

	tbl := transport.New(reg, transport.WithLogger(logger))
	store := persistence.New(persistence.WithLogger(logger))
	if err := store.LoadFromFile(ctx, graphPath, reg, tbl); err != nil {
		logger.Warn("starting with no connections: could not apply saved graph", "path", graphPath, "err", err)
	}

	runErr := mgr.RunAll(ctx, tbl)

	if opts.saveOnExit && runErr == nil {
		if err := store.SaveToFile(context.Background(), graphPath, reg, tbl); err != nil {
			logger.Warn("save graph failed", "path", graphPath, "err", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("run extensions: %w", runErr)
	}
	return nil
}
