package pluginhost

import "portmesh/pkg/pluginapi"

// ServicesFactory produces a HostServices view scoped to one extension, so
// that HostServices.OpenPort(name) resolves name within that extension's
// own registration context (spec.md §4.7) rather than across the whole
// host's port namespace.
//
// Production: *transport.Table
// Testing: a fake returning a canned pluginapi.HostServices per extension
type ServicesFactory interface {
	ServicesFor(extension string) pluginapi.HostServices
}
