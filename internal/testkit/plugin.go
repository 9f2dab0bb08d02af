// Package testkit provides in-process fake pluginapi.Plugin
// implementations for assembling end-to-end scenarios without building
// real -buildmode=plugin .so files, which is outside this exercise's
// build step.
package testkit

import "portmesh/pkg/pluginapi"

// FakePlugin is a pluginapi.Plugin double driven entirely by its fields:
// Descriptors is returned from GetPortDescriptors, and OnRun (if set)
// runs during Run with the HostServices captured at Initialize.
type FakePlugin struct {
	Descriptors []pluginapi.PortDescriptor
	OnRun       func(services pluginapi.HostServices) error
	InitErr     error
	RunErr      error
	ShutdownErr error

	Services pluginapi.HostServices
	Calls    []string
}

var _ pluginapi.Plugin = (*FakePlugin)(nil)

func (p *FakePlugin) GetPortDescriptors() []pluginapi.PortDescriptor { return p.Descriptors }

func (p *FakePlugin) Initialize(services pluginapi.HostServices) error {
	p.Services = services
	p.Calls = append(p.Calls, "initialize")
	return p.InitErr
}

func (p *FakePlugin) Run() error {
	p.Calls = append(p.Calls, "run")
	if p.RunErr != nil {
		return p.RunErr
	}
	if p.OnRun != nil {
		return p.OnRun(p.Services)
	}
	return nil
}

func (p *FakePlugin) Shutdown() error {
	p.Calls = append(p.Calls, "shutdown")
	return p.ShutdownErr
}
