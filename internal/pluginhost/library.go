package pluginhost

import "fmt"

// backend is the platform-specific half of Library: the actual dynamic
// load and symbol lookup. Implemented in library_linux.go atop the
// standard library's plugin package (Go's dlopen/dlsym analogue), and in
// library_other.go as a stub that always fails with a fixed reason on
// platforms the Go toolchain can't build -buildmode=plugin for.
type backend interface {
	Lookup(name string) (any, error)
	Close() error
}

// Library is a scoped handle to one dynamically loaded extension module
// file. It is non-copyable in spirit (copying the struct after Open
// would let two handles race to Close the same backend); callers should
// treat a *Library as move-only, as spec.md's SharedLibrary does.
//
// Grounded on original_source/HostApp/SharedLibrary.hpp.
type Library struct {
	path    string
	backend backend
	lastErr string
}

// Open loads the module at path, replacing any previously open backend.
// It reports true on success; on failure LastError() holds a
// platform-specific human-readable reason and the handle remains closed.
func (l *Library) Open(path string) bool {
	_ = l.Close()
	l.path = path

	b, err := openBackend(path)
	if err != nil {
		l.lastErr = err.Error()
		return false
	}
	l.backend = b
	l.lastErr = ""
	return true
}

// Close is idempotent: safe to call on a never-opened handle, and safe
// to call twice.
func (l *Library) Close() error {
	if l.backend == nil {
		return nil
	}
	err := l.backend.Close()
	l.backend = nil
	return err
}

// IsOpen reports whether this handle currently owns an open backend.
func (l *Library) IsOpen() bool { return l.backend != nil }

// Path returns the path last passed to Open, whether or not it
// succeeded.
func (l *Library) Path() string { return l.path }

// LastError returns the reason the most recent Open failed, or "" if the
// handle is open (or was never opened).
func (l *Library) LastError() string { return l.lastErr }

func (l *Library) lookup(name string) (any, error) {
	if l.backend == nil {
		return nil, fmt.Errorf("pluginhost: library %q is not open", l.path)
	}
	return l.backend.Lookup(name)
}

// GetSymbol resolves a symbol from an open library and asserts it to T,
// the expected function type. Go has no function-pointer casts, so the
// caller supplies T as a type parameter instead of a cast — this is the
// idiomatic stand-in for the original's
// `template <typename Fn> Fn getSymbol(const char* name) const`.
//
// Methods can't take their own type parameters in Go, hence this is a
// free function over *Library rather than a method.
func GetSymbol[T any](l *Library, name string) (T, bool) {
	var zero T
	if l == nil {
		return zero, false
	}
	sym, err := l.lookup(name)
	if err != nil {
		return zero, false
	}
	v, ok := sym.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
