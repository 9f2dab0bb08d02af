package pluginhost

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"portmesh/internal/diagnostics"
	"portmesh/pkg/pluginapi"
)

// ScanObserver is notified of each candidate path's load outcome during
// scanAndLoad, independent of the boolean return contract. Production
// wires this to the Extension Catalog (internal/catalog); tests can
// leave it nil.
//
// Production: func backed by *catalog.Catalog.Record
// Testing: nil, or a fake collecting outcomes in a slice
type ScanObserver func(path string, loaded bool, reason string)

// Manager is the Extension Manager (spec.md C3): it scans configured
// directories, loads candidate extensions, and drives each one's
// initialize/run/shutdown lifecycle.
//
// Grounded on original_source/HostApp/AddOnManager.{hpp,cpp}.
type Manager struct {
	fs         afero.Fs
	logger     *slog.Logger
	tracer     trace.Tracer
	observer   ScanObserver
	searchDirs []string
	extensions []*Extension
	lastScan   diagnostics.Aggregator
}

// Option configures a Manager at construction time, following the
// teacher's EngineOption pattern (internal/engine.EngineOption).
type Option func(*Manager)

// WithFilesystem overrides the afero.Fs used for directory scanning.
// Defaults to the real OS filesystem.
func WithFilesystem(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithLogger overrides the manager's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithTracer overrides the manager's tracer. Defaults to the global
// tracer provider's "portmesh/pluginhost" tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) { m.tracer = tracer }
}

// WithScanObserver registers a callback invoked once per candidate path
// on every scanAndLoad call.
func WithScanObserver(observer ScanObserver) Option {
	return func(m *Manager) { m.observer = observer }
}

// New constructs a Manager with no search directories configured.
func New(opts ...Option) *Manager {
	m := &Manager{
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
		tracer: otel.Tracer("portmesh/pluginhost"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddSearchDir appends a directory to scan, in order.
func (m *Manager) AddSearchDir(path string) {
	m.searchDirs = append(m.searchDirs, path)
}

// ClearSearchDirs removes all configured search directories.
func (m *Manager) ClearSearchDirs() {
	m.searchDirs = nil
}

// Extensions returns the currently loaded extensions, in load order
// (sorted candidate-path order).
func (m *Manager) Extensions() []*Extension {
	return m.extensions
}

// Inject appends an already-constructed Extension directly, bypassing
// ScanAndLoad's open/resolve-symbols/invoke-factory sequence. It exists
// for internal/testkit and other callers that assemble an end-to-end
// scenario from in-process fake pluginapi.Plugin instances instead of a
// real dynamically loaded library.
func (m *Manager) Inject(ext *Extension) {
	m.extensions = append(m.extensions, ext)
}

// Diagnostics returns the aggregated failures from the most recent
// ScanAndLoad call, or nil if none failed.
func (m *Manager) Diagnostics() error {
	return m.lastScan.Err()
}

// ScanAndLoad discovers and loads every candidate extension across the
// configured search directories. It returns true iff at least one
// extension loaded. Individual candidate failures are logged, recorded
// via the scan observer, aggregated into Diagnostics(), and do not abort
// the scan — spec.md §4.2's Load-soft policy.
func (m *Manager) ScanAndLoad(ctx context.Context) bool {
	ctx, span := m.tracer.Start(ctx, "pluginhost.ScanAndLoad")
	defer span.End()

	m.unloadAllLocked()
	m.lastScan = diagnostics.Aggregator{}

	candidates := discoverAll(m.fs, m.searchDirs)
	if len(candidates) == 0 {
		m.logger.Warn("no extension candidates found", "searchDirs", m.searchDirs)
		return false
	}

	anyLoaded := false
	for _, path := range candidates {
		ext, err := m.loadOne(path)
		if err != nil {
			m.logger.Warn("extension load failed", "path", path, "err", err)
			m.lastScan.Add(err)
			if m.observer != nil {
				m.observer(path, false, err.Error())
			}
			continue
		}
		m.extensions = append(m.extensions, ext)
		anyLoaded = true
		m.logger.Info("extension loaded", "path", path, "name", ext.Name())
		if m.observer != nil {
			m.observer(path, true, "")
		}
	}

	if !anyLoaded {
		m.logger.Error("all extension loads failed", "candidates", len(candidates))
	}
	return anyLoaded
}

// loadOne performs the open/resolve-symbols/invoke-factory sequence,
// rolling back (closing the library) on any failure — spec.md §4.2's
// "strict rollback rule".
func (m *Manager) loadOne(path string) (*Extension, error) {
	lib := &Library{}
	if !lib.Open(path) {
		return nil, diagnostics.InvalidArgument("open %q: %s", path, lib.LastError())
	}

	// A looked-up func symbol has the plain func type of its declaration,
	// not the defined types CreateFn/DestroyFn, so assert to the former.
	createFn, ok := GetSymbol[func() pluginapi.Plugin](lib, "CreatePlugin")
	if !ok {
		_ = lib.Close()
		return nil, diagnostics.InvalidArgument("%q: missing CreatePlugin export", path)
	}
	destroyFn, ok := GetSymbol[func(pluginapi.Plugin)](lib, "DestroyPlugin")
	if !ok {
		_ = lib.Close()
		return nil, diagnostics.InvalidArgument("%q: missing DestroyPlugin export", path)
	}

	instance := createFn()
	if instance == nil {
		_ = lib.Close()
		return nil, diagnostics.InvalidArgument("%q: CreatePlugin returned nil", path)
	}

	return &Extension{
		Path:      path,
		Library:   lib,
		CreateFn:  createFn,
		DestroyFn: destroyFn,
		Instance:  instance,
	}, nil
}

// DiscoverPortsForAll enumerates each loaded extension's ports into
// registrar, in load order — deterministic because ScanAndLoad already
// sorted candidate paths. spec.md §2: "Port discovery for extension E
// precedes any Connect involving E."
func (m *Manager) DiscoverPortsForAll(ctx context.Context, registrar PortRegistrar) {
	_, span := m.tracer.Start(ctx, "pluginhost.DiscoverPortsForAll")
	defer span.End()

	for _, ext := range m.extensions {
		name := ext.Name()
		m.logger.Debug("discovering ports", "extension", name)
		reg := registrar.BeginAddon(name)
		for _, desc := range ext.Instance.GetPortDescriptors() {
			if err := reg.CreatePort(desc); err != nil {
				m.logger.Warn("port registration rejected", "extension", name, "port", desc.Name, "err", err)
			}
		}
	}
}

// RunAll drives initialize/run/shutdown on every loaded extension, in
// load order. Each extension receives a HostServices view scoped to its
// own name via factory.ServicesFor. An error from one extension's
// lifecycle is considered fatal per spec.md §7 and is returned immediately
// without running the remaining extensions; a panic is not recovered and
// propagates to the caller.
func (m *Manager) RunAll(ctx context.Context, factory ServicesFactory) error {
	_, span := m.tracer.Start(ctx, "pluginhost.RunAll")
	defer span.End()

	for _, ext := range m.extensions {
		name := ext.Name()
		m.logger.Info("running extension", "extension", name)

		services := factory.ServicesFor(name)
		if err := ext.Instance.Initialize(services); err != nil {
			return fmt.Errorf("initialize %q: %w", name, err)
		}
		if err := ext.Instance.Run(); err != nil {
			return fmt.Errorf("run %q: %w", name, err)
		}
		if err := ext.Instance.Shutdown(); err != nil {
			return fmt.Errorf("shutdown %q: %w", name, err)
		}
	}
	return nil
}

// UnloadAll destroys every instance via its paired destroyer, then
// closes every library, per I7's ABI-symmetry invariant.
func (m *Manager) UnloadAll(ctx context.Context) {
	_, span := m.tracer.Start(ctx, "pluginhost.UnloadAll")
	defer span.End()
	m.unloadAllLocked()
}

func (m *Manager) unloadAllLocked() {
	for _, ext := range m.extensions {
		if ext.Instance != nil && ext.DestroyFn != nil {
			ext.DestroyFn(ext.Instance)
			ext.Instance = nil
		}
		_ = ext.Library.Close()
	}
	m.extensions = nil
}
