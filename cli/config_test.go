package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDiscoverConfigPathFromExplicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte("lib_paths: [/lib/main]\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, found, err := DiscoverConfigPathFrom(path, dir, dir)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error = %v", err)
	}
	if !found || got != path {
		t.Fatalf("DiscoverConfigPathFrom() = (%q, %v), want (%q, true)", got, found, path)
	}
}

func TestDiscoverConfigPathFromExplicitMissing(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := DiscoverConfigPathFrom(filepath.Join(dir, "missing.yaml"), dir, dir); err == nil {
		t.Fatal("DiscoverConfigPathFrom() error = nil, want error for missing explicit path")
	}
}

func TestDiscoverConfigPathFromProjectBeforeHome(t *testing.T) {
	cwd := t.TempDir()
	home := t.TempDir()

	homeConfig := filepath.Join(home, homeConfigDir, homeConfigName)
	if err := os.MkdirAll(filepath.Dir(homeConfig), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(homeConfig, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, found, err := DiscoverConfigPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error = %v", err)
	}
	if !found || got != homeConfig {
		t.Fatalf("DiscoverConfigPathFrom() = (%q, %v), want home config", got, found)
	}

	projectConfig := filepath.Join(cwd, projectConfigName)
	if err := os.WriteFile(projectConfig, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, found, err = DiscoverConfigPathFrom("", cwd, home)
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error = %v", err)
	}
	if !found || got != projectConfig {
		t.Fatalf("DiscoverConfigPathFrom() = (%q, %v), want project config first", got, found)
	}
}

func TestDiscoverConfigPathFromNothingFound(t *testing.T) {
	_, found, err := DiscoverConfigPathFrom("", t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("DiscoverConfigPathFrom() error = %v", err)
	}
	if found {
		t.Fatal("DiscoverConfigPathFrom() found = true, want false")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("PKGAUDIT_TEST_LIB", "/lib/from-env")

	path := filepath.Join(t.TempDir(), "pkgaudit.yaml")
	content := `
lib_paths:
  - /lib/main
  - ${PKGAUDIT_TEST_LIB}
session_file: ${PKGAUDIT_TEST_LIB}/session.yaml
dep_mode: recursive
include_base: true
otel:
  endpoint: localhost:4318
  insecure: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	wantPaths := []string{"/lib/main", "/lib/from-env"}
	if !reflect.DeepEqual(cfg.LibPaths, wantPaths) {
		t.Fatalf("LibPaths = %v, want %v", cfg.LibPaths, wantPaths)
	}
	if cfg.SessionFile != "/lib/from-env/session.yaml" {
		t.Fatalf("SessionFile = %q", cfg.SessionFile)
	}
	if cfg.DepMode != "recursive" {
		t.Fatalf("DepMode = %q, want recursive", cfg.DepMode)
	}
	if !cfg.IncludeBase {
		t.Fatal("IncludeBase = false, want true")
	}
	if cfg.Otel.Endpoint != "localhost:4318" || !cfg.Otel.Insecure {
		t.Fatalf("Otel = %+v", cfg.Otel)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("LoadConfig() error = nil for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("lib_paths: [not\nclosed"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig() error = nil for malformed file")
	}
}
