package pluginapi

import "unsafe"

// Port is the typed façade an extension declares one of per port: the
// four static attributes (name, direction, type, access policy) plus the
// payload type T, from which PayloadSize and TypeHash are derived.
type Port[T any] struct {
	name      string
	direction PortDirection
	typ       PortType
	policy    AccessPolicy

	svc       HostServices
	handle    PortHandle
	directPtr *T
}

// NewPort constructs a typed port declaration. This is the Go stand-in
// for the original's AddOnPort<T, Name, Direction, Type, AccessPolicy>
// template: Go generics don't accept string literals as type parameters,
// so the static name/direction/type/policy attributes are ordinary
// constructor arguments and only the payload type remains a true generic
// parameter.
func NewPort[T any](name string, direction PortDirection, typ PortType, policy AccessPolicy) *Port[T] {
	return &Port[T]{name: name, direction: direction, typ: typ, policy: policy}
}

// Descriptor returns the runtime PortDescriptor for registration. Safe to
// call before Bind.
func (p *Port[T]) Descriptor() PortDescriptor {
	return PortDescriptor{
		Name:         p.name,
		Direction:    p.direction,
		Type:         p.typ,
		AccessPolicy: p.policy,
		PayloadSize:  PayloadSizeOf[T](),
		TypeHash:     TypeHashOf[T](),
	}
}

// DirectStorage is what a Direct port's PortHandle.Impl carries: a
// pointer to the host-owned shared storage block, as raw bytes. The host
// allocates this block without knowing the extension's payload type (it
// only knows PayloadSize); the façade recovers the typed pointer with an
// unsafe.Pointer cast, matching spec's "cast shared storage to the
// payload type" contract.
type DirectStorage interface {
	Pointer() unsafe.Pointer
}

// Bind acquires this port's runtime handle from host services. For
// Direct ports, the handle's DirectStorage is cast to *T and cached for
// the in-place read/write path.
func (p *Port[T]) Bind(services HostServices) error {
	p.svc = services
	h, err := services.OpenPort(p.name)
	if err != nil {
		return err
	}
	p.handle = h
	if p.policy == Direct {
		if ds, ok := h.Impl.(DirectStorage); ok {
			p.directPtr = (*T)(ds.Pointer())
		}
	}
	return nil
}

// Ptr exposes the raw shared pointer for a bound Direct port, or nil if
// unbound or Buffered. Writing through it is only valid for an Output
// port — the host does not enforce this (spec's shared-resource policy
// is a contract, not a guard).
func (p *Port[T]) Ptr() *T {
	return p.directPtr
}

// Read fills out from this port's current data. Direct ports read the
// shared pointer directly; Buffered ports copy through HostServices.Read.
func (p *Port[T]) Read(out *T) bool {
	if p.policy == Direct {
		if p.directPtr == nil {
			return false
		}
		*out = *p.directPtr
		return true
	}
	if p.svc == nil {
		return false
	}
	buf := make([]byte, PayloadSizeOf[T]())
	n, err := p.svc.Read(p.handle, buf)
	if err != nil || n != len(buf) {
		return false
	}
	*out = *(*T)(unsafe.Pointer(&buf[0]))
	return true
}

// Write pushes v through this port. Direct ports write the shared
// pointer directly; Buffered ports copy through HostServices.Write.
func (p *Port[T]) Write(v T) bool {
	if p.direction != Output {
		return false
	}
	if p.policy == Direct {
		if p.directPtr == nil {
			return false
		}
		*p.directPtr = v
		return true
	}
	if p.svc == nil {
		return false
	}
	size := PayloadSizeOf[T]()
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	n, err := p.svc.Write(p.handle, buf)
	return err == nil && n == size
}

// Value is the proxy-sugar equivalent of the original's DataProxy<T>:
// Get() behaves like the implicit conversion-to-value, Set() like
// assignment.
type Value[T any] struct {
	port *Port[T]
}

// Value returns a value-proxy over this port.
func (p *Port[T]) Value() Value[T] {
	return Value[T]{port: p}
}

func (v Value[T]) Get() T {
	var out T
	v.port.Read(&out)
	return out
}

func (v Value[T]) Set(val T) {
	v.port.Write(val)
}
