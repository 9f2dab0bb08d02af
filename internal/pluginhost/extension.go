package pluginhost

import "portmesh/pkg/pluginapi"

// CreateFn and DestroyFn are the Go realization of the extension ABI's
// C-linkage factory/destroyer pair (spec.md §6): a loaded .so exports a
// function named "CreatePlugin" with CreateFn's signature and one named
// "DestroyPlugin" with DestroyFn's signature, resolved via GetSymbol.
type (
	CreateFn  func() pluginapi.Plugin
	DestroyFn func(pluginapi.Plugin)
)

// Extension is one loaded extension: its source path, library handle,
// factory/destroyer pair, and live instance. Normally owned exclusively
// by Manager; its fields are exported so internal/testkit can also
// construct one directly around an in-process fake and hand it to
// Manager.Inject, without a real dynamically loaded library.
//
// Grounded on original_source/HostApp/AddOnManager.hpp's AddOn struct.
type Extension struct {
	Path      string
	Library   *Library
	CreateFn  CreateFn
	DestroyFn DestroyFn
	Instance  pluginapi.Plugin
}

// Name is the extension's registration name: the library file's base
// name without its extension, matching the original's
// `path.stem().string()`.
func (e *Extension) Name() string {
	return stemName(e.Path)
}
