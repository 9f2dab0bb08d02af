// Package persistence implements Graph Persistence (spec.md C8): the
// PMv1 text serialization of ports and connections to and from a file.
package persistence

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"portmesh/internal/diagnostics"
	"portmesh/internal/registry"
	"portmesh/internal/transport"
	"portmesh/pkg/pluginapi"
)

const magic = "PMv1"

type portEntry struct {
	extension  string
	descriptor pluginapi.PortDescriptor
}

type connEntry struct {
	providerExt  string
	providerPort string
	receiverExt  string
	receiverPort string
}

// Store is Graph Persistence, bound to the Registry and Table it
// serializes and reconstructs.
type Store struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the store's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTracer overrides the store's tracer. Defaults to the global tracer
// provider's "portmesh/persistence" tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) { s.tracer = tracer }
}

// New constructs a Store.
func New(opts ...Option) *Store {
	s := &Store{
		tracer: otel.Tracer("portmesh/persistence"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveToFile writes reg's ports (in registry order) and tbl's connections
// (in insertion order) to path in the PMv1 format, per spec.md §4.9.
func (s *Store) SaveToFile(ctx context.Context, path string, reg *registry.Registry, tbl *transport.Table) error {
	_, span := s.tracer.Start(ctx, "persistence.SaveToFile")
	defer span.End()

	ports := reg.Ports()
	conns := tbl.Connections()

	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	fmt.Fprintln(w, magic)
	fmt.Fprintf(w, "%d %d\n", len(ports), len(conns))
	for _, p := range ports {
		fmt.Fprintln(w, p.Key.Extension)
		fmt.Fprintln(w, p.Key.Port)
		fmt.Fprintf(w, "%d %d %d %d %d\n",
			p.Descriptor.Direction, p.Descriptor.Type, p.Descriptor.AccessPolicy,
			p.Descriptor.PayloadSize, p.Descriptor.TypeHash)
	}
	for _, c := range conns {
		fmt.Fprintln(w, c.Provider.Extension)
		fmt.Fprintln(w, c.Provider.Port)
		fmt.Fprintln(w, c.Receiver.Extension)
		fmt.Fprintln(w, c.Receiver.Port)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("persistence: encode graph: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persistence: write %q: %w", path, err)
	}
	s.logger.Info("graph saved", "path", path, "ports", len(ports), "connections", len(conns))
	return nil
}

// LoadFromFile reconstructs ports and connections from path into reg and
// tbl. The entire file is parsed and replayed against a scratch registry
// and table first; reg and tbl are only mutated once that succeeds in
// full, so a parse error or an invalid reconstructed connection leaves
// both in their pre-load state — spec.md §4.9's "all-or-nothing"
// atomicity. Loaded connections get freshly allocated transport state
// (zeroed buffers / a new shared block): a loaded file is a graph, not a
// live session.
func (s *Store) LoadFromFile(ctx context.Context, path string, reg *registry.Registry, tbl *transport.Table) error {
	_, span := s.tracer.Start(ctx, "persistence.LoadFromFile")
	defer span.End()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("persistence: read %q: %w", path, err)
	}

	ports, conns, err := parseGraph(bytes.NewReader(data))
	if err != nil {
		return diagnostics.InvalidArgument("parse graph %q: %v", path, err)
	}

	scratchReg := registry.New()
	for _, p := range ports {
		registration := scratchReg.BeginAddon(p.extension)
		if err := registration.CreatePort(p.descriptor); err != nil {
			return diagnostics.InvalidArgument(
				"reconstruct port %s::%s: %v", p.extension, p.descriptor.Name, err)
		}
	}

	scratchTbl := transport.New(scratchReg)
	for _, c := range conns {
		ok, reason := scratchTbl.Connect(ctx,
			registry.PortKey{Extension: c.providerExt, Port: c.providerPort},
			registry.PortKey{Extension: c.receiverExt, Port: c.receiverPort})
		if !ok {
			return diagnostics.InvalidArgument(
				"reconstruct connection %s::%s -> %s::%s: %s",
				c.providerExt, c.providerPort, c.receiverExt, c.receiverPort, reason)
		}
	}

	reg.Swap(scratchReg)
	tbl.Swap(scratchTbl)
	s.logger.Info("graph loaded", "path", path, "ports", len(ports), "connections", len(conns))
	return nil
}

func parseGraph(r io.Reader) ([]portEntry, []connEntry, error) {
	scanner := bufio.NewScanner(r)

	readLine := func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return scanner.Text(), nil
	}

	line, err := readLine()
	if err != nil {
		return nil, nil, fmt.Errorf("read magic: %w", err)
	}
	if line != magic {
		return nil, nil, fmt.Errorf("bad magic %q, want %q", line, magic)
	}

	countsLine, err := readLine()
	if err != nil {
		return nil, nil, fmt.Errorf("read counts: %w", err)
	}
	var nPorts, nConns int
	if n, err := fmt.Sscanf(countsLine, "%d %d", &nPorts, &nConns); err != nil || n != 2 {
		return nil, nil, fmt.Errorf("bad counts line %q", countsLine)
	}
	if nPorts < 0 || nConns < 0 {
		return nil, nil, fmt.Errorf("negative counts in %q", countsLine)
	}

	ports := make([]portEntry, 0, nPorts)
	for i := 0; i < nPorts; i++ {
		extension, err := readLine()
		if err != nil {
			return nil, nil, fmt.Errorf("port %d: read extension: %w", i, err)
		}
		name, err := readLine()
		if err != nil {
			return nil, nil, fmt.Errorf("port %d: read name: %w", i, err)
		}
		fieldsLine, err := readLine()
		if err != nil {
			return nil, nil, fmt.Errorf("port %d: read fields: %w", i, err)
		}
		var dir, typ, policy, size int
		var hash uint64
		if n, err := fmt.Sscanf(fieldsLine, "%d %d %d %d %d", &dir, &typ, &policy, &size, &hash); err != nil || n != 5 {
			return nil, nil, fmt.Errorf("port %d: bad fields line %q", i, fieldsLine)
		}
		ports = append(ports, portEntry{
			extension: extension,
			descriptor: pluginapi.PortDescriptor{
				Name:         name,
				Direction:    pluginapi.PortDirection(dir),
				Type:         pluginapi.PortType(typ),
				AccessPolicy: pluginapi.AccessPolicy(policy),
				PayloadSize:  size,
				TypeHash:     hash,
			},
		})
	}

	conns := make([]connEntry, 0, nConns)
	for i := 0; i < nConns; i++ {
		providerExt, err := readLine()
		if err != nil {
			return nil, nil, fmt.Errorf("connection %d: read provider extension: %w", i, err)
		}
		providerPort, err := readLine()
		if err != nil {
			return nil, nil, fmt.Errorf("connection %d: read provider port: %w", i, err)
		}
		receiverExt, err := readLine()
		if err != nil {
			return nil, nil, fmt.Errorf("connection %d: read receiver extension: %w", i, err)
		}
		receiverPort, err := readLine()
		if err != nil {
			return nil, nil, fmt.Errorf("connection %d: read receiver port: %w", i, err)
		}
		conns = append(conns, connEntry{
			providerExt: providerExt, providerPort: providerPort,
			receiverExt: receiverExt, receiverPort: receiverPort,
		})
	}

	return ports, conns, nil
}
