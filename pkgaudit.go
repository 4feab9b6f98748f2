// Package pkgaudit inspects an installed package environment and reports
// discrepancies between what a session has loaded and what is on disk.
//
// An audit runs three stages in sequence: a collector resolves the target
// package set and fetches descriptive metadata from the environment's
// registry, a normalizer merges loaded-session state with on-disk metadata
// into one record per package, and a reporter renders the records as a
// compact table with mismatch flags and a legend.
//
// The environment's registry, loaded-session view, and library-root list are
// passed in explicitly; an audit reads a fresh snapshot every time and keeps
// no state between invocations.
package pkgaudit

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Options selects what an audit inspects.
type Options struct {
	// Packages is the explicit set to inspect. Empty means every currently
	// loaded package.
	Packages []string

	// IncludeBase keeps base-distribution packages in the report.
	IncludeBase bool

	// DepMode expands an explicit package list with declared dependencies.
	// DepDefault must be resolved by the caller before the audit runs.
	DepMode DepMode

	// AuditID identifies this audit in events; generated when empty.
	AuditID string

	// Handler receives audit progress events. Optional.
	Handler EventHandler
}

// Audit runs the collect → normalize pipeline against the environment and
// returns the resulting report.
func Audit(env Environment, opts Options) (*Report, error) {
	if env.Registry == nil {
		return nil, errors.New("pkgaudit: environment registry is nil")
	}
	if env.Session == nil {
		return nil, errors.New("pkgaudit: environment session is nil")
	}

	mode := opts.DepMode
	if mode == "" {
		mode = DepNone
	}
	if mode == DepDefault {
		return nil, fmt.Errorf("pkgaudit: dependency mode %q is unresolved", mode)
	}

	auditID := opts.AuditID
	if auditID == "" {
		auditID = uuid.New().String()
	}
	emit := opts.Handler
	if emit == nil {
		emit = func(Event) {}
	}

	started := time.Now()
	emit(NewEvent(EventAuditStarted, auditID).
		WithPayload("requested", len(opts.Packages)))

	collector := NewCollector(env)

	stageStart := time.Now()
	emit(NewEvent(EventStageStarted, auditID).WithStage(StageCollect))
	targets, err := collector.Targets(opts.Packages, mode)
	if err != nil {
		return nil, err
	}
	items := collector.Collect(targets)
	emit(NewEvent(EventStageFinished, auditID).
		WithStage(StageCollect).
		WithElapsed(time.Since(stageStart)).
		WithPayload("packages", len(items)))

	stageStart = time.Now()
	emit(NewEvent(EventStageStarted, auditID).WithStage(StageNormalize))
	records := Normalize(items, env.Session, env.LibRoots, opts.IncludeBase)
	emit(NewEvent(EventStageFinished, auditID).
		WithStage(StageNormalize).
		WithElapsed(time.Since(stageStart)).
		WithPayload("records", len(records)))

	report := &Report{
		Records: records,
		Roots:   NormalizeRoots(env.LibRoots),
	}

	emit(NewEvent(EventAuditFinished, auditID).
		WithElapsed(time.Since(started)).
		WithPayload("records", len(records)).
		WithPayload("mismatches", report.Mismatches()))

	return report, nil
}
