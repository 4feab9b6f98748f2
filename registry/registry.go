// Package registry provides the concrete environment collaborators for an
// audit: a filesystem-backed package registry reading per-package descriptor
// files under the configured library roots, and a loaded-session view parsed
// from a session-state file.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quarry-labs/pkgaudit"
)

const (
	// DescriptorName is the metadata file inside each installed package
	// directory.
	DescriptorName = "pkgmeta.yaml"

	// ManifestName is the install-time checksum manifest inside each
	// installed package directory.
	ManifestName = "MD5"

	// LibsDir is the native-library subdirectory inside a package.
	LibsDir = "libs"
)

// FSRegistry reads package metadata from descriptor files on disk. Packages
// live at <root>/<name>/; the ordered root list decides which copy wins when
// a name is installed under more than one root.
type FSRegistry struct {
	roots []string

	// windowsStyle enables native-library checksum verification, which is
	// tied to the Windows DLL install-manifest format.
	windowsStyle bool
}

// FSRegistryConfig configures an FSRegistry.
type FSRegistryConfig struct {
	// Roots is the ordered list of library root directories.
	Roots []string

	// WindowsStyle forces checksum verification on or off. Nil means
	// "follow the current platform".
	WindowsStyle *bool
}

// NewFSRegistry creates a filesystem-backed registry over the given roots.
func NewFSRegistry(cfg FSRegistryConfig) (*FSRegistry, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("registry: at least one library root is required")
	}
	windowsStyle := runtime.GOOS == "windows"
	if cfg.WindowsStyle != nil {
		windowsStyle = *cfg.WindowsStyle
	}
	return &FSRegistry{
		roots:        pkgaudit.NormalizeRoots(cfg.Roots),
		windowsStyle: windowsStyle,
	}, nil
}

// Describe returns the descriptor metadata for an installed package. A
// package with no descriptor under any root, or with an unreadable or
// malformed descriptor, is reported as absent rather than as an error.
func (r *FSRegistry) Describe(name string) (pkgaudit.Description, bool, error) {
	dir, ok := r.packageDir(name)
	if !ok {
		return pkgaudit.Description{}, false, nil
	}

	// #nosec G304 -- path derived from configured library roots.
	data, err := os.ReadFile(filepath.Join(dir, DescriptorName))
	if err != nil {
		return pkgaudit.Description{}, false, nil
	}

	var desc pkgaudit.Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return pkgaudit.Description{}, false, nil
	}
	if strings.TrimSpace(desc.Name) == "" {
		desc.Name = name
	}
	desc.Path = dir
	return desc, true, nil
}

// packageDir locates the package's install directory, first root wins.
func (r *FSRegistry) packageDir(name string) (string, bool) {
	clean := strings.TrimSpace(name)
	if clean == "" || clean != filepath.Base(clean) {
		return "", false
	}
	for _, root := range r.roots {
		dir := filepath.Join(root, clean)
		if info, err := os.Stat(filepath.Join(dir, DescriptorName)); err == nil && !info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// Roots returns the normalized library roots in configured order.
func (r *FSRegistry) Roots() []string {
	out := make([]string, len(r.roots))
	copy(out, r.roots)
	return out
}

var _ pkgaudit.Registry = (*FSRegistry)(nil)

// SessionFile is the on-disk shape of a loaded-session state dump.
type SessionFile struct {
	Loaded []SessionEntry `yaml:"loaded"`
}

// SessionEntry is one loaded package in a session-state file.
type SessionEntry struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version"`
	Path     string `yaml:"path"`
	Attached bool   `yaml:"attached"`
}

// SessionState is an immutable loaded-session view.
type SessionState struct {
	order []string
	info  map[string]pkgaudit.LoadedInfo
}

// NewSessionState builds a session view from entries. Duplicate names keep
// the first entry.
func NewSessionState(entries []SessionEntry) *SessionState {
	s := &SessionState{info: make(map[string]pkgaudit.LoadedInfo, len(entries))}
	for _, entry := range entries {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		if _, ok := s.info[name]; ok {
			continue
		}
		s.order = append(s.order, name)
		s.info[name] = pkgaudit.LoadedInfo{
			Version:  entry.Version,
			Path:     entry.Path,
			Attached: entry.Attached,
		}
	}
	return s
}

// LoadSessionFile parses a session-state YAML file.
func LoadSessionFile(path string) (*SessionState, error) {
	// #nosec G304 -- CLI path argument.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: reading session file %q: %w", path, err)
	}
	var file SessionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("registry: parsing session file %q: %w", path, err)
	}
	return NewSessionState(file.Loaded), nil
}

// Loaded returns the loaded package names in file order.
func (s *SessionState) Loaded() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Info returns the loaded-state details for a package.
func (s *SessionState) Info(name string) (pkgaudit.LoadedInfo, bool) {
	info, ok := s.info[name]
	return info, ok
}

var _ pkgaudit.Session = (*SessionState)(nil)
