package pluginhost

import "portmesh/pkg/pluginapi"

// Registration is the scoped handle BeginAddon returns: every CreatePort
// call made through it is implicitly scoped to the extension name it was
// created for. This replaces spec.md's mutable currentAddon_ scratch
// field (flagged in §9 as awkward) with the cleaner shape the same
// section suggests: "return a scoped registration object from
// BeginAddon".
//
// Production: *registry.Registration (internal/registry)
// Testing: a fake that records CreatePort calls
type Registration interface {
	CreatePort(desc pluginapi.PortDescriptor) error
}

// PortRegistrar is the seam discoverPortsForAll uses to push one
// extension's ports into the registry.
//
// Production: *registry.Registry
// Testing: a fake that records BeginAddon/CreatePort calls
type PortRegistrar interface {
	BeginAddon(name string) Registration
}
