// Package transport implements the Connection Table and Host Services
// (spec.md C6, C7): allocating direct shared storage or per-edge buffers
// on Connect, and moving bytes through them at runtime.
package transport

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"portmesh/internal/diagnostics"
	"portmesh/internal/registry"
	"portmesh/internal/validate"
	"portmesh/pkg/pluginapi"
)

// Connection is one directed edge between a registered provider port and
// a registered receiver port.
//
// Grounded on original_source/HostApp/PortManager.{hpp,cpp}'s Connection
// struct.
type Connection struct {
	Provider registry.PortKey
	Receiver registry.PortKey
	Buffer   []byte // nil for a Direct edge; the shared block lives in the port records instead.
	HasData  bool
}

// Table is the Connection Table: an ordered list of edges plus the
// transport allocation rules of spec.md §4.4, and the Host Services
// (Read/Write/OpenPort) extensions use at runtime.
type Table struct {
	mu          sync.Mutex
	registry    *registry.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	connections []*Connection
}

// Option configures a Table at construction time.
type Option func(*Table)

// WithLogger overrides the table's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

// WithTracer overrides the table's tracer. Defaults to the global tracer
// provider's "portmesh/transport" tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(t *Table) { t.tracer = tracer }
}

// New constructs an empty Table backed by reg.
func New(reg *registry.Registry, opts ...Option) *Table {
	t := &Table{
		registry: reg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("portmesh/transport"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect validates and, on acceptance, wires a provider port to a
// receiver port: true iff the validator accepts the pair; on rejection
// the table is left untouched and reason explains why.
//
// Grounded on original_source/HostApp/PortManager.cpp's Connect.
func (t *Table) Connect(ctx context.Context, provKey, recvKey registry.PortKey) (bool, string) {
	_, span := t.tracer.Start(ctx, "transport.Connect")
	defer span.End()

	provRec, ok := t.registry.Get(provKey)
	if !ok {
		t.logger.Warn("connect rejected", "reason", "unknown provider port", "provider", provKey)
		return false, "unknown provider port"
	}
	recvRec, ok := t.registry.Get(recvKey)
	if !ok {
		t.logger.Warn("connect rejected", "reason", "unknown receiver port", "receiver", recvKey)
		return false, "unknown receiver port"
	}

	result := validate.Validate(provRec.Descriptor, recvRec.Descriptor)
	if !result.Ok {
		t.logger.Warn("connect rejected", "reason", result.Reason, "provider", provKey, "receiver", recvKey)
		return false, result.Reason
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	conn := &Connection{Provider: provKey, Receiver: recvKey}

	switch provRec.Descriptor.AccessPolicy {
	case pluginapi.Direct:
		db, ok := provRec.Transport.(*directBlock)
		if !ok {
			db = newDirectBlock(provRec.Descriptor.PayloadSize)
			provRec.Transport = db
		}
		recvRec.Transport = db
	case pluginapi.Buffered:
		conn.Buffer = make([]byte, provRec.Descriptor.PayloadSize)
	}
	t.connections = append(t.connections, conn)

	t.logger.Info("connected", "provider", provKey, "receiver", recvKey, "policy", provRec.Descriptor.AccessPolicy)
	return true, ""
}

// Connections returns every connection (Direct and Buffered alike) in
// insertion order — what spec.md's "connections()" enumerates, and what
// Graph Persistence (internal/persistence) saves. A Direct entry carries
// a nil Buffer; its shared state lives on the port records instead (see
// Connect).
func (t *Table) Connections() []*Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Connection, len(t.connections))
	copy(out, t.connections)
	return out
}

// Swap atomically replaces t's connection list with other's. Used by
// internal/persistence alongside Registry.Swap to apply a fully-parsed
// graph in one step.
func (t *Table) Swap(other *Table) {
	other.mu.Lock()
	conns := other.connections
	other.mu.Unlock()

	t.mu.Lock()
	t.connections = conns
	t.mu.Unlock()
}

// ServicesFor returns a HostServices view whose OpenPort resolves names
// within extension's own registration context, satisfying
// pluginhost.ServicesFactory.
func (t *Table) ServicesFor(extension string) pluginapi.HostServices {
	return &extensionServices{table: t, extension: extension}
}

// OpenPort resolves name within extension and returns a handle usable for
// Read/Write (buffered ports) or for recovering the shared pointer
// (Direct ports, via pluginapi.DirectStorage).
func (t *Table) OpenPort(extension, name string) (pluginapi.PortHandle, error) {
	rec, ok := t.registry.Get(registry.PortKey{Extension: extension, Port: name})
	if !ok {
		return pluginapi.PortHandle{}, diagnostics.NotFound("port %s::%s is not registered", extension, name)
	}

	if rec.Descriptor.AccessPolicy == pluginapi.Direct {
		t.mu.Lock()
		db, ok := rec.Transport.(*directBlock)
		if !ok {
			db = newDirectBlock(rec.Descriptor.PayloadSize)
			rec.Transport = db
		}
		t.mu.Unlock()
		return pluginapi.PortHandle{Impl: db}, nil
	}

	return pluginapi.PortHandle{Impl: rec.Key}, nil
}

// Read implements spec.md §4.6's Read: the first connection (by
// insertion order) in which this port is the receiver, failing if none
// exists or if hasData is false. hasData is left set on a successful
// read (the reference sticky policy).
func (t *Table) Read(h pluginapi.PortHandle, dst []byte) (int, error) {
	key, ok := h.Impl.(registry.PortKey)
	if !ok {
		return 0, diagnostics.InvalidArgument("Read is not valid for a Direct port handle")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range t.connections {
		if c.Receiver != key {
			continue
		}
		if !c.HasData {
			return 0, nil
		}
		return copy(dst, c.Buffer), nil
	}
	return 0, nil
}

// Write implements spec.md §4.6's Write: fans out to every connection in
// which this port is the provider, setting hasData on each, and reports
// the byte count copied into the most recently inserted such connection.
func (t *Table) Write(h pluginapi.PortHandle, src []byte) (int, error) {
	key, ok := h.Impl.(registry.PortKey)
	if !ok {
		return 0, diagnostics.InvalidArgument("Write is not valid for a Direct port handle")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	outBytes := 0
	wrote := false
	for _, c := range t.connections {
		if c.Provider != key {
			continue
		}
		outBytes = copy(c.Buffer, src)
		c.HasData = true
		wrote = true
	}
	if !wrote {
		return 0, nil
	}
	return outBytes, nil
}

type extensionServices struct {
	table     *Table
	extension string
}

func (s *extensionServices) OpenPort(name string) (pluginapi.PortHandle, error) {
	return s.table.OpenPort(s.extension, name)
}

func (s *extensionServices) Read(h pluginapi.PortHandle, dst []byte) (int, error) {
	return s.table.Read(h, dst)
}

func (s *extensionServices) Write(h pluginapi.PortHandle, src []byte) (int, error) {
	return s.table.Write(h, src)
}
