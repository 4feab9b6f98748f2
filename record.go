package pkgaudit

import "time"

// ChecksumStatus reports the outcome of native-library checksum verification.
// "Not measured" is deliberately distinct from "measured and fine": platforms
// without install-time checksum manifests always report ChecksumNotApplicable.
type ChecksumStatus string

const (
	ChecksumOK            ChecksumStatus = "ok"
	ChecksumMismatch      ChecksumStatus = "mismatch"
	ChecksumNotApplicable ChecksumStatus = "not-applicable"
)

// String returns the string representation of the ChecksumStatus.
func (s ChecksumStatus) String() string {
	return string(s)
}

// PackageRecord is one fully merged row of the audit: on-disk metadata joined
// with loaded-session state for a single package name. Records are built
// fresh per audit and never mutated after the report is produced.
type PackageRecord struct {
	// Name uniquely identifies the record within one audit.
	Name string `json:"name"`

	// OnDiskVersion is the installed version; empty when the package was
	// removed from disk after being loaded.
	OnDiskVersion string `json:"ondisk_version,omitempty"`

	// LoadedVersion is the version the running session loaded; empty when
	// the package is not currently loaded.
	LoadedVersion string `json:"loaded_version,omitempty"`

	// DiskPath is the install location on disk.
	DiskPath string `json:"disk_path,omitempty"`

	// LoadedPath is the location the session actually loaded from. It can
	// differ from DiskPath when the loaded copy came from a since-superseded
	// location.
	LoadedPath string `json:"loaded_path,omitempty"`

	// Attached reports whether the package is on the active search path,
	// as opposed to merely loaded as a dependency.
	Attached bool `json:"attached"`

	// Base reports whether the package is part of the core distribution.
	Base bool `json:"base"`

	// InstallDate is the calendar date derived from publication or build
	// metadata; zero when unknown. Time-of-day is always stripped.
	InstallDate time.Time `json:"install_date,omitempty"`

	// Source is the human-readable provenance label ("local", a repository
	// name, or a VCS host with org/repo@hash).
	Source string `json:"source,omitempty"`

	// Checksum is the native-library integrity status.
	Checksum ChecksumStatus `json:"checksum"`

	// LibraryRoot is the index of the configured library root the effective
	// path belongs to, or -1 when the path matches no configured root.
	LibraryRoot int `json:"library_root"`
}

// Loaded reports whether the session has this package loaded.
func (r PackageRecord) Loaded() bool {
	return r.LoadedVersion != "" || r.LoadedPath != ""
}

// EffectiveVersion is the version shown in reports: the loaded version when
// the package is currently loaded, else the on-disk version, else "?".
func (r PackageRecord) EffectiveVersion() string {
	if r.LoadedVersion != "" {
		return r.LoadedVersion
	}
	if r.OnDiskVersion != "" {
		return r.OnDiskVersion
	}
	return "?"
}

// VCSInfo holds VCS-host provenance fields from a package descriptor.
type VCSInfo struct {
	Host string `yaml:"host" json:"host"`
	Org  string `yaml:"org" json:"org"`
	Repo string `yaml:"repo" json:"repo"`
	SHA  string `yaml:"sha" json:"sha"`
}

// RemoteInfo holds generic remote-install provenance fields.
// Type "standard" means the plain public repository and produces no label.
type RemoteInfo struct {
	Type string `yaml:"type" json:"type"`
	Org  string `yaml:"org" json:"org"`
	Repo string `yaml:"repo" json:"repo"`
	SHA  string `yaml:"sha" json:"sha"`
}

// Description is the raw on-disk metadata for one installed package, as
// returned by the environment's package registry. Fields map to the
// descriptor file; absent optional fields stay zero.
type Description struct {
	Name    string `yaml:"name" json:"name"`
	Version string `yaml:"version" json:"version"`
	Base    bool   `yaml:"base" json:"base"`

	// Published is the explicit publication timestamp, preferred for the
	// install date when present.
	Published time.Time `yaml:"published" json:"published,omitempty"`

	// Built is the semicolon-delimited build-info string. Its first
	// component names the runtime that built the package, the third is the
	// build date.
	Built string `yaml:"built" json:"built,omitempty"`

	VCS        *VCSInfo    `yaml:"vcs" json:"vcs,omitempty"`
	Remote     *RemoteInfo `yaml:"remote" json:"remote,omitempty"`
	Repository string      `yaml:"repository" json:"repository,omitempty"`
	BiocViews  string      `yaml:"bioc_views" json:"bioc_views,omitempty"`

	Requires []string `yaml:"requires" json:"requires,omitempty"`
	Suggests []string `yaml:"suggests" json:"suggests,omitempty"`

	// Path is the package's install directory, filled by the registry.
	Path string `yaml:"-" json:"path,omitempty"`
}

// LoadedInfo is the loaded-session state for one package.
type LoadedInfo struct {
	Version  string `yaml:"version" json:"version"`
	Path     string `yaml:"path" json:"path"`
	Attached bool   `yaml:"attached" json:"attached"`
}

// Registry is the package-registry collaborator: it answers descriptive
// metadata queries for installed packages. Implementations must treat a
// missing package as (Description{}, false, nil), not as an error.
type Registry interface {
	// Describe returns the raw metadata for an installed package.
	Describe(name string) (Description, bool, error)

	// VerifyChecksum checks the package's native libraries against the
	// install-time checksum manifest. It returns ChecksumNotApplicable on
	// platforms without manifests and when the manifest is unreadable.
	VerifyChecksum(name string) (ChecksumStatus, error)
}

// Session is the loaded-namespace collaborator: a read-only view of what the
// running environment has loaded.
type Session interface {
	// Loaded returns the names of all currently loaded packages.
	Loaded() []string

	// Info returns the loaded-state details for a package.
	Info(name string) (LoadedInfo, bool)
}

// Environment bundles the external collaborators an audit reads from.
// Everything is passed explicitly; the audit keeps no ambient global state.
type Environment struct {
	Registry Registry
	Session  Session

	// LibRoots is the ordered list of configured library root directories.
	// Legend numbering in reports follows this order.
	LibRoots []string
}
