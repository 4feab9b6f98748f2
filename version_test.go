package pkgaudit

import "testing"

func TestVersionsDiffer(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "equal versions", a: "1.2.3", b: "1.2.3", want: false},
		{name: "patch differs", a: "1.2.3", b: "1.2.4", want: true},
		{name: "major differs", a: "2.0.0", b: "1.9.9", want: true},
		{name: "prerelease differs from release", a: "1.0.0-rc.1", b: "1.0.0", want: true},
		{name: "equal prereleases", a: "1.0.0-rc.1", b: "1.0.0-rc.1", want: false},
		{name: "build metadata ignored", a: "1.0.0+linux", b: "1.0.0+darwin", want: false},
		{name: "left unparseable", a: "not-a-version", b: "1.0.0", want: false},
		{name: "right unparseable", a: "1.0.0", b: "1.0", want: false},
		{name: "both unparseable", a: "abc", b: "xyz", want: false},
		{name: "empty strings", a: "", b: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := versionsDiffer(tt.a, tt.b); got != tt.want {
				t.Fatalf("versionsDiffer(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw  string
		ok   bool
		pre  string
	}{
		{raw: "1.2.3", ok: true},
		{raw: "0.0.0", ok: true},
		{raw: "1.0.0-alpha.1", ok: true, pre: "alpha.1"},
		{raw: "1.0.0+build.5", ok: true},
		{raw: " 1.2.3 ", ok: true},
		{raw: "01.2.3", ok: false},
		{raw: "1.2", ok: false},
		{raw: "v1.2.3", ok: false},
		{raw: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, ok := parseVersion(tt.raw)
			if ok != tt.ok {
				t.Fatalf("parseVersion(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && v.pre != tt.pre {
				t.Fatalf("parseVersion(%q) pre = %q, want %q", tt.raw, v.pre, tt.pre)
			}
		})
	}
}

func TestCompareVersionsPrereleaseOrdering(t *testing.T) {
	release, _ := parseVersion("1.0.0")
	rc, _ := parseVersion("1.0.0-rc.1")

	if got := compareVersions(release, rc); got != 1 {
		t.Fatalf("compareVersions(release, rc) = %d, want 1", got)
	}
	if got := compareVersions(rc, release); got != -1 {
		t.Fatalf("compareVersions(rc, release) = %d, want -1", got)
	}
}
