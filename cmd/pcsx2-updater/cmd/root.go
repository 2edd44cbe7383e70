package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/pcsx2-updater/internal/service/updater"
	"github.com/oshokin/pcsx2-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// source overrides the configured build source.
	source string
	// logLevel overrides the configured log level.
	logLevel string
	// assumeYes installs into a directory without PCSX2 without asking.
	assumeYes bool
	// noWait skips the final keypress.
	noWait bool

	// rootCmd represents the base command for updating a PCSX2 installation.
	rootCmd = &cobra.Command{
		Use:   "pcsx2-updater [directory]",
		Short: "Download the newest PCSX2 build and install it over the current one",
		Long: `Updates a PCSX2 installation in place.

Looks up the newest build on the buildbot listing or the release feed, downloads
its archive, extracts it and moves the files over the installation. The directory
defaults to the one holding this executable.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var workDir string
			if len(args) > 0 {
				workDir = args[0]
			}

			options := &updater.Options{
				ConfigPath: configPath,
				WorkDir:    workDir,
				Source:     source,
				LogLevel:   logLevel,
				AssumeYes:  assumeYes,
				NoWait:     noWait,
				In:         cmd.InOrStdin(),
				Out:        cmd.OutOrStdout(),
			}

			return updater.Run(ctx, options)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the pcsx2-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default ./pcsx2-updater-settings.yaml if present)")
	rootCmd.Flags().StringVar(&source, "source", "", "build source: listing or feed")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "install without asking when PCSX2 is not found")
	rootCmd.Flags().BoolVar(&noWait, "no-wait", false, "exit without waiting for a keypress")
}
