package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/quarry-labs/pkgaudit"
)

func newRecordedHandler(t *testing.T) (*TracingHandler, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return NewTracingHandler(provider.Tracer("test")), recorder
}

func spanAttribute(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingHandlerAuditLifecycle(t *testing.T) {
	handler, recorder := newRecordedHandler(t)

	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventAuditStarted, "audit-1"))
	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventStageStarted, "audit-1").
		WithStage(pkgaudit.StageCollect))
	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventStageFinished, "audit-1").
		WithStage(pkgaudit.StageCollect).
		WithElapsed(100 * time.Millisecond).
		WithPayload("packages", 3))
	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventAuditFinished, "audit-1").
		WithElapsed(250 * time.Millisecond).
		WithPayload("records", 3).
		WithPayload("mismatches", 1))

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}

	stage := ended[0]
	if stage.Name() != "stage:collect" {
		t.Fatalf("stage span name = %q, want stage:collect", stage.Name())
	}
	if val, ok := spanAttribute(stage, "pkgaudit.packages"); !ok || val.AsInt64() != 3 {
		t.Fatalf("stage packages attribute = %v", val)
	}

	audit := ended[1]
	if audit.Name() != "audit" {
		t.Fatalf("audit span name = %q, want audit", audit.Name())
	}
	if val, ok := spanAttribute(audit, "pkgaudit.audit_id"); !ok || val.AsString() != "audit-1" {
		t.Fatalf("audit_id attribute = %v", val)
	}
	if val, ok := spanAttribute(audit, "pkgaudit.mismatches"); !ok || val.AsInt64() != 1 {
		t.Fatalf("mismatches attribute = %v", val)
	}
	if stage.Parent().SpanID() != audit.SpanContext().SpanID() {
		t.Fatal("stage span is not a child of the audit span")
	}
}

func TestTracingHandlerOrphanStage(t *testing.T) {
	handler, recorder := newRecordedHandler(t)

	// Stage events without an audit_started still produce a span.
	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventStageStarted, "audit-x").
		WithStage(pkgaudit.StageNormalize))
	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventStageFinished, "audit-x").
		WithStage(pkgaudit.StageNormalize).
		WithElapsed(10 * time.Millisecond))

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if ended[0].Name() != "stage:normalize" {
		t.Fatalf("span name = %q, want stage:normalize", ended[0].Name())
	}
}

func TestTracingHandlerUnknownFinishIgnored(t *testing.T) {
	handler, recorder := newRecordedHandler(t)

	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventStageFinished, "audit-y").
		WithStage(pkgaudit.StageCollect))
	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventAuditFinished, "audit-y"))

	if ended := recorder.Ended(); len(ended) != 0 {
		t.Fatalf("ended spans = %d, want 0", len(ended))
	}
}

func TestActiveAuditSpanContext(t *testing.T) {
	handler, _ := newRecordedHandler(t)

	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventAuditStarted, "audit-1"))
	if !handler.ActiveAuditSpanContext("audit-1").IsValid() {
		t.Fatal("ActiveAuditSpanContext() invalid for active audit")
	}
	if handler.ActiveAuditSpanContext("other").IsValid() {
		t.Fatal("ActiveAuditSpanContext() valid for unknown audit")
	}

	handler.Handle(pkgaudit.NewEvent(pkgaudit.EventAuditFinished, "audit-1"))
	if handler.ActiveAuditSpanContext("audit-1").IsValid() {
		t.Fatal("ActiveAuditSpanContext() valid after audit finished")
	}
}
