//go:build linux

package pluginhost

import "plugin"

// pluginBackend wraps the standard library's plugin.Plugin, the only
// dynamic-loading primitive the Go toolchain ships (Linux-only,
// requiring modules built with `go build -buildmode=plugin`).
type pluginBackend struct {
	p *plugin.Plugin
}

func (b *pluginBackend) Lookup(name string) (any, error) {
	return b.p.Lookup(name)
}

// Close is a no-op: plugin.Plugin has no unload primitive — once loaded,
// a Go plugin stays mapped for the process lifetime. This still honors
// the Library contract (idempotent, safe on a never-opened handle); it
// just can't release address space the way dlclose can.
func (b *pluginBackend) Close() error { return nil }

func openBackend(path string) (backend, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return &pluginBackend{p: p}, nil
}
