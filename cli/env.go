package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/pkgaudit"
	"github.com/quarry-labs/pkgaudit/registry"
	"github.com/quarry-labs/pkgaudit/store"
)

// auditSetup is the resolved environment plus the effective config for one
// audit-running command invocation.
type auditSetup struct {
	env pkgaudit.Environment
	cfg Config
}

// resolveAuditSetup merges flags and discovered config into a ready audit
// environment. Flags win over config values.
func resolveAuditSetup(cmd *cobra.Command) (auditSetup, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return auditSetup{}, err
	}

	libPaths, _ := cmd.Flags().GetStringArray("lib-path")
	if len(libPaths) == 0 {
		libPaths = cfg.LibPaths
	}
	if len(libPaths) == 0 {
		return auditSetup{}, exitError(exitValidation, "at least one library path is required (--lib-path or lib_paths in config)")
	}

	reg, err := registry.NewFSRegistry(registry.FSRegistryConfig{Roots: libPaths})
	if err != nil {
		return auditSetup{}, exitError(exitValidation, "%v", err)
	}

	session, err := resolveSession(cmd, cfg)
	if err != nil {
		return auditSetup{}, err
	}

	return auditSetup{
		env: pkgaudit.Environment{
			Registry: reg,
			Session:  session,
			LibRoots: reg.Roots(),
		},
		cfg: cfg,
	}, nil
}

func resolveConfig(cmd *cobra.Command) (Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")
	path, found, err := DiscoverConfigPath(explicitPath)
	if err != nil {
		if strings.TrimSpace(explicitPath) != "" {
			return Config{}, exitError(exitFileNotFound, "%v", err)
		}
		return Config{}, exitError(exitRuntime, "%v", err)
	}
	if !found {
		return Config{}, nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, exitError(exitInputParse, "%v", err)
	}
	return cfg, nil
}

func resolveSession(cmd *cobra.Command, cfg Config) (pkgaudit.Session, error) {
	sessionPath, _ := cmd.Flags().GetString("session")
	if strings.TrimSpace(sessionPath) == "" {
		sessionPath = cfg.SessionFile
	}
	if strings.TrimSpace(sessionPath) == "" {
		// No session dump: audit on-disk state only.
		return registry.NewSessionState(nil), nil
	}

	session, err := registry.LoadSessionFile(sessionPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exitError(exitFileNotFound, "session file not found: %s", sessionPath)
		}
		return nil, exitError(exitInputParse, "%v", err)
	}
	return session, nil
}

// resolveDepMode parses the --deps flag and resolves the "default" mode
// against the configured fallback.
func resolveDepMode(cmd *cobra.Command, cfg Config) (pkgaudit.DepMode, error) {
	raw, _ := cmd.Flags().GetString("deps")
	mode, err := pkgaudit.ParseDepMode(raw)
	if err != nil {
		return "", exitError(exitInputParse, "%v", err)
	}

	fallback, err := pkgaudit.ParseDepMode(cfg.DepMode)
	if err != nil {
		return "", exitError(exitInputParse, "config dep_mode: %v", err)
	}
	return mode.Resolve(fallback), nil
}

// resolveSnapshotStore opens the snapshot store selected by flags, config, or
// the default location.
func resolveSnapshotStore(cmd *cobra.Command, cfg Config) (*store.Store, error) {
	storePath, _ := cmd.Flags().GetString("store-path")
	if strings.TrimSpace(storePath) == "" {
		storePath = cfg.StorePath
	}
	if strings.TrimSpace(storePath) == "" {
		defaultPath, err := store.DefaultPath()
		if err != nil {
			return nil, exitError(exitRuntime, "resolving default store path: %v", err)
		}
		if err := os.MkdirAll(filepath.Dir(defaultPath), 0o750); err != nil {
			return nil, exitError(exitRuntime, "creating default store directory: %v", err)
		}
		storePath = defaultPath
	}

	st, err := store.Open(storePath)
	if err != nil {
		return nil, exitError(exitRuntime, "opening snapshot store: %v", err)
	}
	return st, nil
}
