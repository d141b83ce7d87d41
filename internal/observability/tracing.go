package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/rl1809/grocery-store"

// Tracer returns the named tracer from the global provider. Without an SDK
// provider installed spans are no-ops that still propagate context.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationName + "/" + component)
}

// InstallPropagator makes W3C traceparent and baggage headers flow through
// the global propagator used by the HTTP middleware.
func InstallPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}
