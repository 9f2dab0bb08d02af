//go:build !linux

package pluginhost

import "errors"

// errUnsupportedPlatform is returned on every platform the Go toolchain
// cannot build -buildmode=plugin for — notably Windows and non-Linux
// unix variants. spec.md's §6 Windows .dll path is therefore reachable
// only in the discovery file-extension table (see discovery.go), never
// in the load step; see DESIGN.md for why this is treated as the
// platform's idiomatic-Go resolution rather than a cgo dlopen shim.
var errUnsupportedPlatform = errors.New("dynamic plugin loading is not supported on this platform")

func openBackend(path string) (backend, error) {
	return nil, errUnsupportedPlatform
}
