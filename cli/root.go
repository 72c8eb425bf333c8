// Package cli is the myresource command line: the HTTP server plus terminal
// versions of the gallery actions.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// Execute runs the root command with ctx, which cancels on SIGINT/SIGTERM in main.
func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "myresource",
		Short: "Self-hosted file resource catalog",
		Long: `myresource keeps a catalog of uploaded files (name, category, tags, size,
thumbnail) in a key-value store and serves a filterable, sortable gallery over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				return os.Setenv("CONFIG_FILE", configFile)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default config/config.json)")
	cmd.AddCommand(
		newServeCmd(),
		newListCmd(),
		newUploadCmd(),
		newDownloadCmd(),
		newShareCmd(),
		newThemeCmd(),
		newStatsCmd(),
	)
	return cmd
}
