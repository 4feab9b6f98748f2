// Package otel provides OpenTelemetry integration for audit events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/quarry-labs/pkgaudit"
)

// TracingHandler translates audit events into OpenTelemetry spans: one root
// span per audit with a child span per pipeline stage.
type TracingHandler struct {
	tracer trace.Tracer

	mu         sync.RWMutex
	auditSpans map[string]trace.Span      // auditID -> span
	auditCtxs  map[string]context.Context // auditID -> context (for child spans)
	stageSpans map[string]trace.Span      // auditID:stage -> span
}

// NewTracingHandler creates a TracingHandler that uses the given tracer to
// create spans from audit events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:     tracer,
		auditSpans: make(map[string]trace.Span),
		auditCtxs:  make(map[string]context.Context),
		stageSpans: make(map[string]trace.Span),
	}
}

// Handle processes an audit event and creates or ends spans accordingly.
// It implements pkgaudit.EventHandler semantics.
func (h *TracingHandler) Handle(e pkgaudit.Event) {
	switch e.Kind {
	case pkgaudit.EventAuditStarted:
		h.handleAuditStarted(e)
	case pkgaudit.EventStageStarted:
		h.handleStageStarted(e)
	case pkgaudit.EventStageFinished:
		h.handleStageFinished(e)
	case pkgaudit.EventAuditFinished:
		h.handleAuditFinished(e)
	}
}

func (h *TracingHandler) handleAuditStarted(e pkgaudit.Event) {
	ctx, span := h.tracer.Start(context.Background(), "audit",
		trace.WithAttributes(
			attribute.String("pkgaudit.audit_id", e.AuditID),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.auditSpans[e.AuditID] = span
	h.auditCtxs[e.AuditID] = ctx
	h.mu.Unlock()
}

func (h *TracingHandler) handleStageStarted(e pkgaudit.Event) {
	h.mu.RLock()
	parentCtx, ok := h.auditCtxs[e.AuditID]
	h.mu.RUnlock()

	if !ok {
		// No parent audit span; start from background context.
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "stage:"+e.Stage,
		trace.WithAttributes(
			attribute.String("pkgaudit.audit_id", e.AuditID),
			attribute.String("pkgaudit.stage", e.Stage),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.stageSpans[e.AuditID+":"+e.Stage] = span
	h.mu.Unlock()
}

func (h *TracingHandler) handleStageFinished(e pkgaudit.Event) {
	key := e.AuditID + ":" + e.Stage

	h.mu.Lock()
	span, ok := h.stageSpans[key]
	if ok {
		delete(h.stageSpans, key)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.String("pkgaudit.duration", e.Elapsed.String()),
		)
		if count, found := intPayload(e, "packages"); found {
			span.SetAttributes(attribute.Int("pkgaudit.packages", count))
		}
		if count, found := intPayload(e, "records"); found {
			span.SetAttributes(attribute.Int("pkgaudit.records", count))
		}
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

func (h *TracingHandler) handleAuditFinished(e pkgaudit.Event) {
	h.mu.Lock()
	span, ok := h.auditSpans[e.AuditID]
	if ok {
		delete(h.auditSpans, e.AuditID)
		delete(h.auditCtxs, e.AuditID)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.String("pkgaudit.duration", e.Elapsed.String()),
		)
		if count, found := intPayload(e, "records"); found {
			span.SetAttributes(attribute.Int("pkgaudit.records", count))
		}
		if count, found := intPayload(e, "mismatches"); found {
			span.SetAttributes(attribute.Int("pkgaudit.mismatches", count))
		}
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveAuditSpanContext returns the SpanContext for the active audit span
// identified by auditID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveAuditSpanContext(auditID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.auditSpans[auditID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

func intPayload(e pkgaudit.Event, key string) (int, bool) {
	value, ok := e.Payload[key]
	if !ok {
		return 0, false
	}
	n, ok := value.(int)
	return n, ok
}
