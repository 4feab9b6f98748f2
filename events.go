package pkgaudit

import "time"

// EventKind identifies the type of event emitted by an audit.
type EventKind string

const (
	// EventAuditStarted is emitted when an audit begins.
	EventAuditStarted EventKind = "audit_started"

	// EventStageStarted is emitted when a pipeline stage begins.
	EventStageStarted EventKind = "stage_started"

	// EventStageFinished is emitted when a pipeline stage completes.
	EventStageFinished EventKind = "stage_finished"

	// EventAuditFinished is emitted when an audit completes.
	EventAuditFinished EventKind = "audit_finished"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Stage names used in stage events.
const (
	StageCollect   = "collect"
	StageNormalize = "normalize"
)

// Event is a structured record of audit progress, consumed by observability
// handlers. Events carry counts and timings, never full records.
type Event struct {
	// Kind identifies the event type.
	Kind EventKind

	// AuditID is the unique identifier for this audit.
	AuditID string

	// Stage is the pipeline stage (empty for audit-level events).
	Stage string

	// Time is when the event occurred.
	Time time.Time

	// Elapsed is the duration since the audit or stage started.
	Elapsed time.Duration

	// Payload contains event-specific data.
	Payload map[string]any
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, auditID string) Event {
	return Event{
		Kind:    kind,
		AuditID: auditID,
		Time:    time.Now(),
		Payload: make(map[string]any),
	}
}

// WithStage sets the stage name on the event.
func (e Event) WithStage(stage string) Event {
	e.Stage = stage
	return e
}

// WithElapsed sets the elapsed duration on the event.
func (e Event) WithElapsed(elapsed time.Duration) Event {
	e.Elapsed = elapsed
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventHandler is a function type for handling audit events.
// Implementations can log, trace, or record metrics as needed.
type EventHandler func(Event)

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}
