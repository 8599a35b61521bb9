// Command chunkcanvas serves and inspects embedding indexes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "chunkcanvas",
		Short:         "Persistent embedding indexes with a metadata sidecar",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file path (optional)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(flags),
		newCreateCmd(flags),
		newInfoCmd(flags),
		newListCmd(flags),
		newContentCmd(flags),
		newDeleteCmd(flags),
	)
	return rootCmd
}
