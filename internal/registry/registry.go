// Package registry implements the Port Registry (spec.md C4): it maps
// (extension-name, port-name) to a port record, rejects duplicates, and
// exposes enumeration in ascending composite-key order.
package registry

import (
	"log/slog"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix"

	"portmesh/internal/diagnostics"
	"portmesh/internal/pluginhost"
	"portmesh/pkg/pluginapi"
)

// PortKey identifies a port uniquely across the host.
type PortKey struct {
	Extension string
	Port      string
}

// PortRecord is one registered port: its key, its descriptor, and a
// transport slot the Connection Table (internal/transport) owns. The
// registry never reads or writes Transport itself — it only hands out
// the pointer so transport allocation can mutate it in place without a
// second lookup.
type PortRecord struct {
	Key        PortKey
	Descriptor pluginapi.PortDescriptor
	Transport  any
}

func compositeKey(extension, port string) []byte {
	return append(append([]byte(extension), 0x00), []byte(port)...)
}

// Registry is the Port Registry. The zero value is not usable; construct
// with New.
//
// Grounded on original_source/HostApp/PortManager.{hpp,cpp}'s ports_ map,
// re-backed by a radix tree per spec.md §4.3's ordering requirement.
type Registry struct {
	mu     sync.Mutex
	tree   *iradix.Tree
	logger *slog.Logger
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger overrides the registry's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tree:   iradix.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registration is the scoped handle BeginAddon returns: CreatePort calls
// made through it are implicitly scoped to the extension name it was
// created for, replacing spec.md's currentAddon_ mutable scratch field
// (see DESIGN.md Open Questions).
type Registration struct {
	registry  *Registry
	extension string
}

// CreatePort registers desc under this Registration's extension. Returns
// a FailedPrecondition-classified error if the extension name is empty
// (BeginAddon("") or a zero Registration), or
// an AlreadyExists-classified error on a duplicate key — the first
// registration wins, matching spec.md §4.3.
func (reg *Registration) CreatePort(desc pluginapi.PortDescriptor) error {
	return reg.registry.createPort(reg.extension, desc)
}

// BeginAddon returns a Registration scoped to name. Until BeginAddon is
// called, there is no way to reach CreatePort — the type system enforces
// spec.md's "CreatePort before BeginAddon fails" rule structurally rather
// than with a runtime flag.
//
// Returns pluginhost.Registration (rather than the concrete *Registration)
// so *Registry satisfies pluginhost.PortRegistrar directly.
func (r *Registry) BeginAddon(name string) pluginhost.Registration {
	return &Registration{registry: r, extension: name}
}

var _ pluginhost.PortRegistrar = (*Registry)(nil)

func (r *Registry) createPort(extension string, desc pluginapi.PortDescriptor) error {
	if extension == "" {
		return diagnostics.FailedPrecondition("CreatePort called without BeginAddon")
	}
	if desc.Name == "" {
		return diagnostics.InvalidArgument("port name must not be empty")
	}

	key := compositeKey(extension, desc.Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tree.Get(key); ok {
		r.logger.Warn("duplicate port ignored", "extension", extension, "port", desc.Name)
		return diagnostics.AlreadyExists("duplicate port %s::%s", extension, desc.Name)
	}

	rec := &PortRecord{Key: PortKey{Extension: extension, Port: desc.Name}, Descriptor: desc}
	tree, _, _ := r.tree.Insert(key, rec)
	r.tree = tree

	r.logger.Debug("port registered",
		"extension", extension, "port", desc.Name,
		"direction", desc.Direction, "type", desc.Type, "policy", desc.AccessPolicy)
	return nil
}

// Get looks up a single port record by key.
func (r *Registry) Get(key PortKey) (*PortRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.tree.Get(compositeKey(key.Extension, key.Port))
	if !ok {
		return nil, false
	}
	return v.(*PortRecord), true
}

// Ports returns every registered port in ascending (extension, port)
// order — the radix tree's natural key order, since "\x00" sorts before
// any valid identifier byte.
func (r *Registry) Ports() []*PortRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*PortRecord, 0, r.tree.Len())
	r.tree.Root().Walk(func(_ []byte, v interface{}) bool {
		out = append(out, v.(*PortRecord))
		return false
	})
	return out
}

// Reset clears every registered port.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree = iradix.New()
}

// Swap atomically replaces r's contents with other's. Used by
// internal/persistence to apply a fully-parsed graph in one step: the
// caller builds a scratch Registry, and only swaps it in once the whole
// file has parsed and reconstructed without error.
func (r *Registry) Swap(other *Registry) {
	other.mu.Lock()
	tree := other.tree
	other.mu.Unlock()

	r.mu.Lock()
	r.tree = tree
	r.mu.Unlock()
}
