package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the auth-domain instruments registered on the server's meter.
type Metrics struct {
	operations metric.Int64Counter
}

// NewMetrics registers auth instruments on the given meter. Returns an error if
// instrument creation fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ops, err := meter.Int64Counter("painel_auth.operations",
		metric.WithDescription("Auth operations by kind and outcome"))
	if err != nil {
		return nil, err
	}
	return &Metrics{operations: ops}, nil
}

// RecordOperation counts one auth operation. kind is e.g. "login", "signup";
// outcome is "ok" or a stable error tag.
func (m *Metrics) RecordOperation(ctx context.Context, kind, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("outcome", outcome),
		))
}
