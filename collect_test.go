package pkgaudit

import (
	"reflect"
	"testing"
	"time"
)

// memRegistry is an in-memory Registry for tests.
type memRegistry struct {
	descs     map[string]Description
	checksums map[string]ChecksumStatus
}

func (r *memRegistry) Describe(name string) (Description, bool, error) {
	desc, ok := r.descs[name]
	return desc, ok, nil
}

func (r *memRegistry) VerifyChecksum(name string) (ChecksumStatus, error) {
	if status, ok := r.checksums[name]; ok {
		return status, nil
	}
	return ChecksumNotApplicable, nil
}

// memSession is an in-memory Session for tests.
type memSession struct {
	order []string
	info  map[string]LoadedInfo
}

func (s *memSession) Loaded() []string {
	return s.order
}

func (s *memSession) Info(name string) (LoadedInfo, bool) {
	info, ok := s.info[name]
	return info, ok
}

func testEnv(reg *memRegistry, sess *memSession, roots ...string) Environment {
	if reg == nil {
		reg = &memRegistry{}
	}
	if sess == nil {
		sess = &memSession{}
	}
	return Environment{Registry: reg, Session: sess, LibRoots: roots}
}

func TestTargetsDefaultsToLoaded(t *testing.T) {
	sess := &memSession{order: []string{"alpha", "beta", "alpha", "  ", "gamma"}}
	collector := NewCollector(testEnv(nil, sess))

	got, err := collector.Targets(nil, DepNone)
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Targets() = %v, want %v", got, want)
	}
}

func TestTargetsRejectsUnresolvedDefault(t *testing.T) {
	collector := NewCollector(testEnv(nil, nil))
	if _, err := collector.Targets([]string{"alpha"}, DepDefault); err == nil {
		t.Fatal("Targets() error = nil, want error for unresolved default mode")
	}
}

func TestTargetsDependencyExpansion(t *testing.T) {
	reg := &memRegistry{descs: map[string]Description{
		"alpha": {Name: "alpha", Requires: []string{"beta"}, Suggests: []string{"extra"}},
		"beta":  {Name: "beta", Requires: []string{"gamma"}},
		"gamma": {Name: "gamma"},
		"extra": {Name: "extra", Requires: []string{"deep"}},
		"deep":  {Name: "deep"},
	}}
	collector := NewCollector(testEnv(reg, nil))

	tests := []struct {
		name string
		mode DepMode
		want []string
	}{
		{name: "none", mode: DepNone, want: []string{"alpha"}},
		{name: "direct", mode: DepDirect, want: []string{"alpha", "beta"}},
		{name: "direct with suggests", mode: DepDirectSuggests, want: []string{"alpha", "beta", "extra"}},
		{name: "recursive", mode: DepRecursive, want: []string{"alpha", "beta", "gamma"}},
		{name: "recursive with suggests", mode: DepRecursiveSuggests, want: []string{"alpha", "beta", "extra", "gamma", "deep"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collector.Targets([]string{"alpha"}, tt.mode)
			if err != nil {
				t.Fatalf("Targets() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Targets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTargetsToleratesMissingDependency(t *testing.T) {
	reg := &memRegistry{descs: map[string]Description{
		"alpha": {Name: "alpha", Requires: []string{"ghost"}},
	}}
	collector := NewCollector(testEnv(reg, nil))

	got, err := collector.Targets([]string{"alpha"}, DepRecursive)
	if err != nil {
		t.Fatalf("Targets() error = %v", err)
	}
	want := []string{"alpha", "ghost"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Targets() = %v, want %v", got, want)
	}
}

func TestCollectMissingPackage(t *testing.T) {
	collector := NewCollector(testEnv(&memRegistry{}, nil))

	items := collector.Collect([]string{"ghost"})
	if len(items) != 1 {
		t.Fatalf("Collect() returned %d items, want 1", len(items))
	}
	item := items[0]
	if item.Found {
		t.Fatal("Collect() Found = true for missing package")
	}
	if item.Checksum != ChecksumNotApplicable {
		t.Fatalf("Collect() Checksum = %q, want %q", item.Checksum, ChecksumNotApplicable)
	}
}

func TestCollectDerivesFields(t *testing.T) {
	reg := &memRegistry{
		descs: map[string]Description{
			"alpha": {
				Name:       "alpha",
				Version:    "1.2.3",
				Repository: "CRAN",
				Built:      "4.3.1; x86_64; 2024-02-10 09:30:00 UTC; unix",
			},
		},
		checksums: map[string]ChecksumStatus{"alpha": ChecksumOK},
	}
	collector := NewCollector(testEnv(reg, nil))

	items := collector.Collect([]string{"alpha"})
	item := items[0]
	if !item.Found {
		t.Fatal("Collect() Found = false")
	}
	if item.Source != "CRAN (4.3.1)" {
		t.Fatalf("Collect() Source = %q, want %q", item.Source, "CRAN (4.3.1)")
	}
	wantDate := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	if !item.InstallDate.Equal(wantDate) {
		t.Fatalf("Collect() InstallDate = %v, want %v", item.InstallDate, wantDate)
	}
	if item.Checksum != ChecksumOK {
		t.Fatalf("Collect() Checksum = %q, want %q", item.Checksum, ChecksumOK)
	}
}

func TestInstallDatePrefersPublished(t *testing.T) {
	desc := Description{
		Published: time.Date(2023, 6, 1, 17, 45, 12, 0, time.UTC),
		Built:     "4.3.1; x86_64; 2024-02-10 09:30:00 UTC; unix",
	}
	want := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	if got := installDate(desc); !got.Equal(want) {
		t.Fatalf("installDate() = %v, want %v", got, want)
	}
}

func TestInstallDateUnparseable(t *testing.T) {
	tests := []struct {
		name  string
		built string
	}{
		{name: "empty", built: ""},
		{name: "too few components", built: "4.3.1; x86_64"},
		{name: "garbage date", built: "4.3.1; x86_64; someday; unix"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := installDate(Description{Built: tt.built}); !got.IsZero() {
				t.Fatalf("installDate() = %v, want zero", got)
			}
		})
	}
}

func TestSourceLabel(t *testing.T) {
	tests := []struct {
		name string
		desc Description
		want string
	}{
		{
			name: "vcs install wins",
			desc: Description{
				VCS:        &VCSInfo{Host: "GitHub", Org: "quarry-labs", Repo: "alpha", SHA: "0123456789abcdef"},
				Remote:     &RemoteInfo{Type: "url"},
				Repository: "CRAN",
			},
			want: "GitHub (quarry-labs/alpha@0123456)",
		},
		{
			name: "incomplete vcs falls through",
			desc: Description{
				VCS:        &VCSInfo{Host: "GitHub", Org: "quarry-labs"},
				Repository: "CRAN",
			},
			want: "CRAN",
		},
		{
			name: "remote with slug and hash",
			desc: Description{
				Remote: &RemoteInfo{Type: "gitlab", Org: "org", Repo: "repo", SHA: "abcdef0123456789"},
			},
			want: "gitlab (org/repo@abcdef0)",
		},
		{
			name: "remote with hash only",
			desc: Description{
				Remote: &RemoteInfo{Type: "url", SHA: "abcdef0123456789"},
			},
			want: "url (abcdef0)",
		},
		{
			name: "remote without details",
			desc: Description{Remote: &RemoteInfo{Type: "local-build"}},
			want: "local-build",
		},
		{
			name: "standard remote falls through to repository",
			desc: Description{
				Remote:     &RemoteInfo{Type: "standard"},
				Repository: "CRAN",
				Built:      "4.3.1; x86_64; 2024-02-10; unix",
			},
			want: "CRAN (4.3.1)",
		},
		{
			name: "repository without build info",
			desc: Description{Repository: "CRAN"},
			want: "CRAN",
		},
		{
			name: "bioconductor views",
			desc: Description{BiocViews: "Software, Annotation"},
			want: "Bioconductor",
		},
		{
			name: "nothing known",
			desc: Description{},
			want: "local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sourceLabel(tt.desc); got != tt.want {
				t.Fatalf("sourceLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("abc"); got != "abc" {
		t.Fatalf("shortHash(short) = %q, want %q", got, "abc")
	}
	if got := shortHash("0123456789"); got != "0123456" {
		t.Fatalf("shortHash(long) = %q, want %q", got, "0123456")
	}
}
