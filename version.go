package pkgaudit

import (
	"regexp"
	"strconv"
	"strings"
)

var semverPattern = regexp.MustCompile(
	`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)` +
		`(?:-((?:0|[1-9][0-9]*|[0-9A-Za-z-]*[A-Za-z-][0-9A-Za-z-]*)` +
		`(?:\.(?:0|[1-9][0-9]*|[0-9A-Za-z-]*[A-Za-z-][0-9A-Za-z-]*))*))?` +
		`(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`,
)

type version struct {
	major, minor, patch int
	pre                 string
}

// parseVersion parses a SemVer 2.0.0 string. Build metadata is ignored.
func parseVersion(raw string) (version, bool) {
	match := semverPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return version{}, false
	}
	major, err := strconv.Atoi(match[1])
	if err != nil {
		return version{}, false
	}
	minor, err := strconv.Atoi(match[2])
	if err != nil {
		return version{}, false
	}
	patch, err := strconv.Atoi(match[3])
	if err != nil {
		return version{}, false
	}
	return version{major: major, minor: minor, patch: patch, pre: match[4]}, true
}

// versionsDiffer reports whether a and b are both valid semantic versions
// that compare unequal. Non-strict by design: if either side fails to parse,
// no mismatch is asserted.
func versionsDiffer(a, b string) bool {
	va, okA := parseVersion(a)
	vb, okB := parseVersion(b)
	if !okA || !okB {
		return false
	}
	return compareVersions(va, vb) != 0
}

func compareVersions(a, b version) int {
	if c := compareInt(a.major, b.major); c != 0 {
		return c
	}
	if c := compareInt(a.minor, b.minor); c != 0 {
		return c
	}
	if c := compareInt(a.patch, b.patch); c != 0 {
		return c
	}
	// A version with a prerelease sorts below the same version without one.
	switch {
	case a.pre == b.pre:
		return 0
	case a.pre == "":
		return 1
	case b.pre == "":
		return -1
	}
	return strings.Compare(a.pre, b.pre)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
