// Package tracing installs the process-wide OpenTelemetry tracer
// provider portmeshd's components draw their tracer from.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a TracerProvider as the global default and returns a
// shutdown function to flush and release it. No exporter is configured
// here — portmeshd's spans (pluginhost.ScanAndLoad, transport.Connect,
// persistence.SaveToFile, and friends) are structural instrumentation
// points, ready for an exporter to be wired in later without touching
// any of the component code that calls tracer.Start.
//
// Grounded on the teacher's cmd/ployzd/main.go TracerProvider setup.
func Setup(ctx context.Context) (shutdown func(context.Context) error, err error) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
