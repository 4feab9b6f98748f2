package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/quarry-labs/pkgaudit"
)

// MetricsHandler translates audit events into OpenTelemetry metrics.
// It records counters for inspected packages and detected mismatches and a
// histogram of audit durations.
type MetricsHandler struct {
	packagesInspected metric.Int64Counter
	mismatches        metric.Int64Counter
	auditDuration     metric.Float64Histogram
	stageDuration     metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording audit metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	inspected, err := meter.Int64Counter("pkgaudit.packages.inspected",
		metric.WithDescription("Number of packages inspected"),
	)
	if err != nil {
		return nil, err
	}

	mismatches, err := meter.Int64Counter("pkgaudit.mismatches",
		metric.WithDescription("Number of packages with mismatch flags"),
	)
	if err != nil {
		return nil, err
	}

	auditDur, err := meter.Float64Histogram("pkgaudit.audit.duration",
		metric.WithDescription("Duration of a full audit in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stageDur, err := meter.Float64Histogram("pkgaudit.stage.duration",
		metric.WithDescription("Duration of an audit stage in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		packagesInspected: inspected,
		mismatches:        mismatches,
		auditDuration:     auditDur,
		stageDuration:     stageDur,
	}, nil
}

// Handle processes an audit event and records the appropriate metrics.
// It implements pkgaudit.EventHandler semantics.
func (h *MetricsHandler) Handle(e pkgaudit.Event) {
	switch e.Kind {
	case pkgaudit.EventStageFinished:
		h.handleStageFinished(e)
	case pkgaudit.EventAuditFinished:
		h.handleAuditFinished(e)
	}
}

func (h *MetricsHandler) handleStageFinished(e pkgaudit.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("stage", e.Stage),
	)
	h.stageDuration.Record(ctx, e.Elapsed.Seconds(), attrs)

	if e.Stage == pkgaudit.StageCollect {
		if count, ok := intPayload(e, "packages"); ok {
			h.packagesInspected.Add(ctx, int64(count))
		}
	}
}

func (h *MetricsHandler) handleAuditFinished(e pkgaudit.Event) {
	ctx := context.Background()
	h.auditDuration.Record(ctx, e.Elapsed.Seconds())
	if count, ok := intPayload(e, "mismatches"); ok {
		h.mismatches.Add(ctx, int64(count))
	}
}
