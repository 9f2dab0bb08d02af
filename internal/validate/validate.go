// Package validate implements the Compatibility Validator (spec.md C5): a
// pure function deciding whether a provider port may be connected to a
// receiver port.
package validate

import "portmesh/pkg/pluginapi"

// Result is the outcome of Validate: Ok reports acceptance, and Reason
// holds the first failing check's fixed diagnostic string when Ok is
// false.
type Result struct {
	Ok     bool
	Reason string
}

// Validate runs the six ordered checks from spec.md §4.5 against prov and
// recv, top-to-bottom, returning the first failure. Name equality is
// intentionally not checked — a provider and receiver never need matching
// port names to connect.
//
// Grounded on original_source/HostApp/PortManager.cpp's (incomplete)
// Validate snapshot, completed to the full six-check table DESIGN.md
// records under C5.
func Validate(prov, recv pluginapi.PortDescriptor) Result {
	switch {
	case prov.Direction != pluginapi.Output:
		return Result{Ok: false, Reason: "provider is not Output"}
	case recv.Direction != pluginapi.Input:
		return Result{Ok: false, Reason: "receiver is not Input"}
	case prov.Type != recv.Type:
		return Result{Ok: false, Reason: "type mismatch"}
	case prov.PayloadSize != recv.PayloadSize:
		return Result{Ok: false, Reason: "payload size mismatch"}
	case prov.TypeHash != recv.TypeHash:
		return Result{Ok: false, Reason: "payload type mismatch"}
	case prov.AccessPolicy != recv.AccessPolicy:
		return Result{Ok: false, Reason: "access policy mismatch"}
	default:
		return Result{Ok: true}
	}
}
