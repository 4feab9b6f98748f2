package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/pkgaudit"
)

// NewReportCmd creates the "report" subcommand.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [package ...]",
		Short: "Audit installed packages and print a mismatch report",
		Long: "Audit the package environment and print one row per package with " +
			"version, install date, library root, and source, flagging packages " +
			"whose loaded state disagrees with what is on disk. Without arguments " +
			"every loaded package is inspected.",
		RunE: runReport,
	}

	cmd.Flags().String("config", "", "Path to pkgaudit.yaml config")
	cmd.Flags().StringArray("lib-path", nil, "Library root directory (repeatable, ordered)")
	cmd.Flags().String("session", "", "Path to session-state YAML dump")
	cmd.Flags().String("deps", "", "Dependency expansion: none | direct | direct-suggests | recursive | recursive-suggests | default")
	cmd.Flags().Bool("include-base", false, "Include base-distribution packages")
	cmd.Flags().String("format", "text", "Output format: text | json")
	cmd.Flags().Bool("save", false, "Save the report as a snapshot")
	cmd.Flags().String("store-path", "", "Path to SQLite snapshot store (default: ~/.pkgaudit/pkgaudit.db)")

	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	setup, err := resolveAuditSetup(cmd)
	if err != nil {
		return err
	}

	report, err := runAudit(cmd, setup, args)
	if err != nil {
		return err
	}

	save, _ := cmd.Flags().GetBool("save")
	if save {
		if err := saveSnapshot(cmd.Context(), cmd, setup.cfg, report); err != nil {
			return err
		}
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "", "text":
		return report.Render(cmd.OutOrStdout())
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding report: %v", err)
		}
		_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
		return nil
	default:
		return exitError(exitInputParse, "unsupported --format %q (use text, json)", format)
	}
}

// runAudit runs one audit pass with options resolved from flags and config.
func runAudit(cmd *cobra.Command, setup auditSetup, packages []string) (*pkgaudit.Report, error) {
	mode, err := resolveDepMode(cmd, setup.cfg)
	if err != nil {
		return nil, err
	}

	includeBase, _ := cmd.Flags().GetBool("include-base")

	report, err := pkgaudit.Audit(setup.env, pkgaudit.Options{
		Packages:    packages,
		IncludeBase: includeBase || setup.cfg.IncludeBase,
		DepMode:     mode,
	})
	if err != nil {
		return nil, exitError(exitRuntime, "audit failed: %v", err)
	}
	return report, nil
}

func saveSnapshot(ctx context.Context, cmd *cobra.Command, cfg Config, report *pkgaudit.Report) error {
	st, err := resolveSnapshotStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	snap, err := st.Save(ctx, report)
	if err != nil {
		return exitError(exitRuntime, "saving snapshot: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved snapshot: %s\n", snap.ID)
	return nil
}
