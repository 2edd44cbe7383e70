package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oshokin/pcsx2-updater/internal/config"
)

// initConfigCmd writes the default settings file.
var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default settings file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultConfigFilename
		}

		if err := config.Save(path, config.Default()); err != nil {
			return err
		}

		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Settings written to %s\n", path)

		return err
	},
}
