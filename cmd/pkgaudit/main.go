package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/pkgaudit/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pkgaudit",
	Short: "Package environment audit CLI",
	Long:  "pkgaudit — inspect installed packages and report where loaded state disagrees with what is on disk.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("pkgaudit version %s\n", version))

	rootCmd.AddCommand(cli.NewReportCmd())
	rootCmd.AddCommand(cli.NewSnapshotCmd())
	rootCmd.AddCommand(cli.NewWatchCmd())
}
