package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	projectConfigName = "pkgaudit.yaml"
	homeConfigDir     = ".pkgaudit"
	homeConfigName    = "config.yaml"
)

// Config is the declarative CLI configuration shape for pkgaudit.yaml.
type Config struct {
	// LibPaths is the ordered list of library root directories.
	LibPaths []string `yaml:"lib_paths,omitempty"`

	// SessionFile points at a loaded-session state dump. Empty means audit
	// on-disk state only.
	SessionFile string `yaml:"session_file,omitempty"`

	// StorePath overrides the default snapshot store location.
	StorePath string `yaml:"store_path,omitempty"`

	// DepMode is the default dependency expansion mode for explicit package
	// lists: none, direct, direct-suggests, recursive, recursive-suggests.
	DepMode string `yaml:"dep_mode,omitempty"`

	// IncludeBase keeps base-distribution packages in reports by default.
	IncludeBase bool `yaml:"include_base,omitempty"`

	Otel OtelConfig `yaml:"otel,omitempty"`
}

// OtelConfig configures optional trace export.
type OtelConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// DiscoverConfigPath resolves the config location with first-match semantics.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, homeConfigDir, homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// If explicit path is set, not found is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadConfig reads and parses a config file, expanding ${ENV} references in
// path values.
func LoadConfig(path string) (Config, error) {
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %q: %w", path, err)
	}

	for i, p := range cfg.LibPaths {
		cfg.LibPaths[i] = os.ExpandEnv(p)
	}
	cfg.SessionFile = os.ExpandEnv(cfg.SessionFile)
	cfg.StorePath = os.ExpandEnv(cfg.StorePath)
	cfg.Otel.Endpoint = os.ExpandEnv(cfg.Otel.Endpoint)
	return cfg, nil
}
