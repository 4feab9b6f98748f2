package pkgaudit

import (
	"fmt"
	"strings"
)

// DepMode controls how an explicit package list is expanded to include
// declared dependencies before collection.
type DepMode string

const (
	// DepNone inspects exactly the requested packages.
	DepNone DepMode = "none"

	// DepDirect adds direct required dependencies.
	DepDirect DepMode = "direct"

	// DepDirectSuggests adds direct required and suggested dependencies.
	DepDirectSuggests DepMode = "direct-suggests"

	// DepRecursive adds required dependencies transitively.
	DepRecursive DepMode = "recursive"

	// DepRecursiveSuggests adds required and suggested dependencies
	// transitively.
	DepRecursiveSuggests DepMode = "recursive-suggests"

	// DepDefault defers to the environment's configured default mode.
	// It must be resolved to a concrete mode before an audit runs.
	DepDefault DepMode = "default"
)

// ParseDepMode validates and canonicalizes a dependency-expansion mode.
// An unrecognized value is a hard error; it is the one input the audit
// refuses to degrade on.
func ParseDepMode(raw string) (DepMode, error) {
	switch DepMode(strings.TrimSpace(strings.ToLower(raw))) {
	case DepNone, "":
		return DepNone, nil
	case DepDirect:
		return DepDirect, nil
	case DepDirectSuggests:
		return DepDirectSuggests, nil
	case DepRecursive:
		return DepRecursive, nil
	case DepRecursiveSuggests:
		return DepRecursiveSuggests, nil
	case DepDefault:
		return DepDefault, nil
	default:
		return "", fmt.Errorf("unsupported dependency mode %q (use none, direct, direct-suggests, recursive, recursive-suggests, default)", raw)
	}
}

// Resolve replaces DepDefault with the environment's configured fallback.
func (m DepMode) Resolve(fallback DepMode) DepMode {
	if m == DepDefault {
		if fallback == "" || fallback == DepDefault {
			return DepNone
		}
		return fallback
	}
	return m
}

func (m DepMode) recursive() bool {
	return m == DepRecursive || m == DepRecursiveSuggests
}

func (m DepMode) suggests() bool {
	return m == DepDirectSuggests || m == DepRecursiveSuggests
}
