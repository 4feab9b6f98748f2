package pkgaudit

import (
	"fmt"
	"strings"
	"time"
)

// Collected is the per-package output of the collection stage: raw registry
// metadata plus the fields derived from it. A package that could not be
// described still produces a Collected with Found=false so one broken
// package never fails the batch.
type Collected struct {
	Name        string
	Desc        Description
	Found       bool
	InstallDate time.Time
	Source      string
	Checksum    ChecksumStatus
}

// Collector resolves the target package set and gathers metadata for it.
type Collector struct {
	registry Registry
	session  Session
}

// NewCollector creates a Collector reading from the given environment.
func NewCollector(env Environment) *Collector {
	return &Collector{
		registry: env.Registry,
		session:  env.Session,
	}
}

// Targets produces the deduplicated, ordered set of package names to
// inspect. With no explicit list it returns every currently loaded package.
// With an explicit list it optionally expands declared dependencies
// according to mode; mode must already be resolved to a concrete value.
func (c *Collector) Targets(explicit []string, mode DepMode) ([]string, error) {
	if mode == DepDefault {
		return nil, fmt.Errorf("dependency mode %q must be resolved before collection", mode)
	}

	if len(explicit) == 0 {
		return dedupe(c.session.Loaded()), nil
	}

	names := dedupe(explicit)
	if mode == DepNone {
		return names, nil
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		seen[name] = struct{}{}
	}

	frontier := names
	for len(frontier) > 0 {
		var next []string
		for _, name := range frontier {
			for _, dep := range c.declaredDeps(name, mode.suggests()) {
				if _, ok := seen[dep]; ok {
					continue
				}
				seen[dep] = struct{}{}
				names = append(names, dep)
				next = append(next, dep)
			}
		}
		if !mode.recursive() {
			break
		}
		frontier = next
	}
	return names, nil
}

// declaredDeps returns a package's declared dependencies. Lookup failures
// simply contribute nothing; a missing package cannot name dependencies.
func (c *Collector) declaredDeps(name string, withSuggests bool) []string {
	desc, found, err := c.registry.Describe(name)
	if err != nil || !found {
		return nil
	}
	deps := desc.Requires
	if withSuggests {
		deps = append(append([]string(nil), deps...), desc.Suggests...)
	}
	return deps
}

// Collect fetches and derives metadata for every name. Individual lookup
// failures degrade to an absent-metadata marker rather than an error.
func (c *Collector) Collect(names []string) []Collected {
	out := make([]Collected, 0, len(names))
	for _, name := range names {
		out = append(out, c.collectOne(name))
	}
	return out
}

func (c *Collector) collectOne(name string) Collected {
	desc, found, err := c.registry.Describe(name)
	if err != nil || !found {
		return Collected{Name: name, Checksum: ChecksumNotApplicable}
	}

	item := Collected{
		Name:        name,
		Desc:        desc,
		Found:       true,
		InstallDate: installDate(desc),
		Source:      sourceLabel(desc),
	}

	status, err := c.registry.VerifyChecksum(name)
	if err != nil {
		status = ChecksumNotApplicable
	}
	item.Checksum = status
	return item
}

// installDate derives the calendar install date: the explicit publication
// timestamp when present, else the date component of the build-info string.
func installDate(desc Description) time.Time {
	if !desc.Published.IsZero() {
		return truncateToDate(desc.Published)
	}
	parts := strings.Split(desc.Built, ";")
	if len(parts) < 3 {
		return time.Time{}
	}
	return parseBuildDate(strings.TrimSpace(parts[2]))
}

var buildDateLayouts = []string{
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseBuildDate(raw string) time.Time {
	for _, layout := range buildDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return truncateToDate(t)
		}
	}
	return time.Time{}
}

func truncateToDate(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// sourceLabel derives the provenance label. First matching rule wins:
// VCS host install, generic remote install, classic repository,
// Bioconductor views, and finally a local build.
func sourceLabel(desc Description) string {
	if vcs := desc.VCS; vcs != nil && vcs.Host != "" && vcs.Org != "" && vcs.Repo != "" && vcs.SHA != "" {
		return fmt.Sprintf("%s (%s/%s@%s)", vcs.Host, vcs.Org, vcs.Repo, shortHash(vcs.SHA))
	}

	if remote := desc.Remote; remote != nil && remote.Type != "" && remote.Type != "standard" {
		label := remote.Type
		if suffix := remoteSuffix(remote); suffix != "" {
			label += " (" + suffix + ")"
		}
		return label
	}

	if desc.Repository != "" {
		label := desc.Repository
		if rt := builtRuntime(desc.Built); rt != "" {
			label += " (" + rt + ")"
		}
		return label
	}

	if strings.TrimSpace(desc.BiocViews) != "" {
		return "Bioconductor"
	}

	return "local"
}

// remoteSuffix builds the optional "org/repo@hash" parenthetical. Both the
// org/repo slug and the hash are independently optional.
func remoteSuffix(remote *RemoteInfo) string {
	var slug string
	if remote.Org != "" && remote.Repo != "" {
		slug = remote.Org + "/" + remote.Repo
	}
	hash := ""
	if remote.SHA != "" {
		hash = shortHash(remote.SHA)
	}
	switch {
	case slug != "" && hash != "":
		return slug + "@" + hash
	case slug != "":
		return slug
	default:
		return hash
	}
}

// builtRuntime extracts the first component of the build-info string, which
// names the runtime version the package was built against.
func builtRuntime(built string) string {
	first, _, _ := strings.Cut(built, ";")
	return strings.TrimSpace(first)
}

func shortHash(sha string) string {
	if len(sha) <= 7 {
		return sha
	}
	return sha[:7]
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
