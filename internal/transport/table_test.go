package transport

import (
	"context"
	"testing"
	"unsafe"

	"portmesh/internal/diagnostics"
	"portmesh/internal/registry"
	"portmesh/pkg/pluginapi"
)

type packet struct {
	Value int32
}

func setupPorts(t *testing.T, reg *registry.Registry, policy pluginapi.AccessPolicy) {
	t.Helper()
	prov := reg.BeginAddon("Producer")
	if err := prov.CreatePort(pluginapi.PortDescriptor{
		Name: "out", Direction: pluginapi.Output, Type: pluginapi.SharedMemory,
		AccessPolicy: policy, PayloadSize: 4, TypeHash: 0xaaaa,
	}); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	recv := reg.BeginAddon("Consumer")
	if err := recv.CreatePort(pluginapi.PortDescriptor{
		Name: "in", Direction: pluginapi.Input, Type: pluginapi.SharedMemory,
		AccessPolicy: policy, PayloadSize: 4, TypeHash: 0xaaaa,
	}); err != nil {
		t.Fatalf("register receiver: %v", err)
	}
}

func TestConnectRejectsUnknownPorts(t *testing.T) {
	reg := registry.New()
	tbl := New(reg)

	ok, reason := tbl.Connect(context.Background(),
		registry.PortKey{Extension: "Producer", Port: "out"},
		registry.PortKey{Extension: "Consumer", Port: "in"})
	if ok {
		t.Fatal("expected rejection for unknown ports")
	}
	if reason != "unknown provider port" {
		t.Fatalf("got reason %q", reason)
	}
}

func TestConnectRejectsValidatorFailure(t *testing.T) {
	reg := registry.New()
	setupPorts(t, reg, pluginapi.Buffered)

	// mutate the receiver into an incompatible type by re-registering under a new name.
	recv := reg.BeginAddon("Consumer")
	_ = recv.CreatePort(pluginapi.PortDescriptor{
		Name: "bad", Direction: pluginapi.Input, Type: pluginapi.InternalMemory,
		AccessPolicy: pluginapi.Buffered, PayloadSize: 4, TypeHash: 0xaaaa,
	})

	tbl := New(reg)
	ok, reason := tbl.Connect(context.Background(),
		registry.PortKey{Extension: "Producer", Port: "out"},
		registry.PortKey{Extension: "Consumer", Port: "bad"})
	if ok {
		t.Fatal("expected rejection")
	}
	if reason != "type mismatch" {
		t.Fatalf("got reason %q", reason)
	}
	if len(tbl.Connections()) != 0 {
		t.Fatal("expected no connection recorded on rejection")
	}
}

func TestBufferedWriteFanOutReadSticky(t *testing.T) {
	reg := registry.New()
	setupPorts(t, reg, pluginapi.Buffered)

	// a second receiver for the same provider, to exercise fan-out.
	recv2 := reg.BeginAddon("Consumer2")
	_ = recv2.CreatePort(pluginapi.PortDescriptor{
		Name: "in", Direction: pluginapi.Input, Type: pluginapi.SharedMemory,
		AccessPolicy: pluginapi.Buffered, PayloadSize: 4, TypeHash: 0xaaaa,
	})

	tbl := New(reg)
	provKey := registry.PortKey{Extension: "Producer", Port: "out"}

	if ok, reason := tbl.Connect(context.Background(), provKey, registry.PortKey{Extension: "Consumer", Port: "in"}); !ok {
		t.Fatalf("connect 1 failed: %s", reason)
	}
	if ok, reason := tbl.Connect(context.Background(), provKey, registry.PortKey{Extension: "Consumer2", Port: "in"}); !ok {
		t.Fatalf("connect 2 failed: %s", reason)
	}

	services := tbl.ServicesFor("Producer")
	outHandle, err := services.OpenPort("out")
	if err != nil {
		t.Fatalf("open provider port: %v", err)
	}

	src := make([]byte, 4)
	*(*int32)(unsafe.Pointer(&src[0])) = 99
	n, err := services.Write(outHandle, src)
	if err != nil || n != 4 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}

	for _, ext := range []string{"Consumer", "Consumer2"} {
		svc := tbl.ServicesFor(ext)
		h, err := svc.OpenPort("in")
		if err != nil {
			t.Fatalf("open %s: %v", ext, err)
		}
		dst := make([]byte, 4)
		n, err := svc.Read(h, dst)
		if err != nil || n != 4 {
			t.Fatalf("read %s: n=%d err=%v", ext, n, err)
		}
		if got := *(*int32)(unsafe.Pointer(&dst[0])); got != 99 {
			t.Fatalf("%s got %d, want 99", ext, got)
		}

		// sticky: a second read still succeeds without another write.
		dst2 := make([]byte, 4)
		n2, err := svc.Read(h, dst2)
		if err != nil || n2 != 4 {
			t.Fatalf("sticky read %s: n=%d err=%v", ext, n2, err)
		}
	}
}

func TestBufferedReadFailsWithoutData(t *testing.T) {
	reg := registry.New()
	setupPorts(t, reg, pluginapi.Buffered)
	tbl := New(reg)

	ok, reason := tbl.Connect(context.Background(),
		registry.PortKey{Extension: "Producer", Port: "out"},
		registry.PortKey{Extension: "Consumer", Port: "in"})
	if !ok {
		t.Fatalf("connect failed: %s", reason)
	}

	svc := tbl.ServicesFor("Consumer")
	h, _ := svc.OpenPort("in")
	dst := make([]byte, 4)
	n, err := svc.Read(h, dst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 bytes before any write, got %d", n)
	}
}

func TestDirectConnectionSharesStorage(t *testing.T) {
	reg := registry.New()
	setupPorts(t, reg, pluginapi.Direct)
	tbl := New(reg)

	ok, reason := tbl.Connect(context.Background(),
		registry.PortKey{Extension: "Producer", Port: "out"},
		registry.PortKey{Extension: "Consumer", Port: "in"})
	if !ok {
		t.Fatalf("connect failed: %s", reason)
	}

	provSvc := tbl.ServicesFor("Producer")
	provHandle, err := provSvc.OpenPort("out")
	if err != nil {
		t.Fatalf("open provider: %v", err)
	}
	recvSvc := tbl.ServicesFor("Consumer")
	recvHandle, err := recvSvc.OpenPort("in")
	if err != nil {
		t.Fatalf("open receiver: %v", err)
	}

	provStorage, ok := provHandle.Impl.(pluginapi.DirectStorage)
	if !ok {
		t.Fatal("expected provider handle to carry DirectStorage")
	}
	recvStorage, ok := recvHandle.Impl.(pluginapi.DirectStorage)
	if !ok {
		t.Fatal("expected receiver handle to carry DirectStorage")
	}
	if provStorage.Pointer() != recvStorage.Pointer() {
		t.Fatal("expected provider and receiver to share the same storage block")
	}

	ptr := (*int32)(provStorage.Pointer())
	*ptr = 123
	if got := *(*int32)(recvStorage.Pointer()); got != 123 {
		t.Fatalf("got %d, want 123", got)
	}
}

func TestReadWriteRejectDirectHandles(t *testing.T) {
	reg := registry.New()
	setupPorts(t, reg, pluginapi.Direct)
	tbl := New(reg)
	_, _ = tbl.Connect(context.Background(),
		registry.PortKey{Extension: "Producer", Port: "out"},
		registry.PortKey{Extension: "Consumer", Port: "in"})

	svc := tbl.ServicesFor("Producer")
	h, _ := svc.OpenPort("out")

	if _, err := svc.Read(h, make([]byte, 4)); !diagnostics.IsInvalidArgument(err) {
		t.Fatalf("expected InvalidArgument from Read on a Direct handle, got %v", err)
	}
	if _, err := svc.Write(h, make([]byte, 4)); !diagnostics.IsInvalidArgument(err) {
		t.Fatalf("expected InvalidArgument from Write on a Direct handle, got %v", err)
	}
}

func TestOpenPortUnknown(t *testing.T) {
	reg := registry.New()
	tbl := New(reg)
	svc := tbl.ServicesFor("Nobody")
	if _, err := svc.OpenPort("ghost"); !diagnostics.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
