package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/pkgaudit"
	"github.com/quarry-labs/pkgaudit/store"
)

// NewSnapshotCmd creates the "snapshot" command group.
func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage saved audit snapshots",
	}
	cmd.PersistentFlags().String("store-path", "", "Path to SQLite snapshot store (default: ~/.pkgaudit/pkgaudit.db)")
	cmd.PersistentFlags().String("config", "", "Path to pkgaudit.yaml config")

	cmd.AddCommand(newSnapshotSaveCmd())
	cmd.AddCommand(newSnapshotListCmd())
	cmd.AddCommand(newSnapshotShowCmd())
	cmd.AddCommand(newSnapshotDiffCmd())
	cmd.AddCommand(newSnapshotDeleteCmd())

	return cmd
}

func newSnapshotSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [package ...]",
		Short: "Run an audit and save the result as a snapshot",
		RunE:  runSnapshotSave,
	}
	cmd.Flags().StringArray("lib-path", nil, "Library root directory (repeatable, ordered)")
	cmd.Flags().String("session", "", "Path to session-state YAML dump")
	cmd.Flags().String("deps", "", "Dependency expansion: none | direct | direct-suggests | recursive | recursive-suggests | default")
	cmd.Flags().Bool("include-base", false, "Include base-distribution packages")
	return cmd
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	setup, err := resolveAuditSetup(cmd)
	if err != nil {
		return err
	}
	report, err := runAudit(cmd, setup, args)
	if err != nil {
		return err
	}
	return saveSnapshot(cmd.Context(), cmd, setup.cfg, report)
}

func newSnapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots, newest first",
		RunE:  runSnapshotList,
	}
}

func runSnapshotList(cmd *cobra.Command, _ []string) error {
	st, err := openSnapshotStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	snaps, err := st.List(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "listing snapshots: %v", err)
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTAKEN_AT\tPACKAGES\tMISMATCHES")
	for _, snap := range snaps {
		report := pkgaudit.Report{Records: snap.Records}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n",
			snap.ID,
			snap.TakenAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(len(snap.Records)),
			strconv.Itoa(report.Mismatches()),
		)
	}
	return writer.Flush()
}

func newSnapshotShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved snapshot report",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotShow,
	}
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

func runSnapshotShow(cmd *cobra.Command, args []string) error {
	st, err := openSnapshotStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	snap, found, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return exitError(exitRuntime, "loading snapshot: %v", err)
	}
	if !found {
		return exitError(exitValidation, "snapshot %q not found", args[0])
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "", "text":
		fmt.Fprint(cmd.OutOrStdout(), snap.Report)
		return nil
	case "json":
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding snapshot: %v", err)
		}
		_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
		return nil
	default:
		return exitError(exitInputParse, "unsupported --format %q (use text, json)", format)
	}
}

func newSnapshotDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <older-id> <newer-id>",
		Short: "Compare two snapshots package by package",
		Args:  cobra.ExactArgs(2),
		RunE:  runSnapshotDiff,
	}
}

func runSnapshotDiff(cmd *cobra.Command, args []string) error {
	st, err := openSnapshotStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	older, found, err := st.Get(cmd.Context(), args[0])
	if err != nil {
		return exitError(exitRuntime, "loading snapshot: %v", err)
	}
	if !found {
		return exitError(exitValidation, "snapshot %q not found", args[0])
	}
	newer, found, err := st.Get(cmd.Context(), args[1])
	if err != nil {
		return exitError(exitRuntime, "loading snapshot: %v", err)
	}
	if !found {
		return exitError(exitValidation, "snapshot %q not found", args[1])
	}

	entries := store.Diff(older, newer)
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Snapshots are identical.")
		return nil
	}

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "PACKAGE\tCHANGE\tFROM\tTO")
	for _, entry := range entries {
		from := entry.From
		if from == "" {
			from = "-"
		}
		to := entry.To
		if to == "" {
			to = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", entry.Name, entry.Kind, from, to)
	}
	return writer.Flush()
}

func newSnapshotDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runSnapshotDelete,
	}
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	st, err := openSnapshotStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()

	if err := st.Delete(cmd.Context(), args[0]); err != nil {
		return exitError(exitRuntime, "deleting snapshot: %v", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted snapshot: %s\n", args[0])
	return nil
}

func openSnapshotStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	return resolveSnapshotStore(cmd, cfg)
}
