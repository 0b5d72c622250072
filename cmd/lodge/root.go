// Package lodge implements the lodge command-line interface. Commands
// wire the engines together, subscribe to the event bus, and print
// plain lines; all heavy lifting lives under pkg/.
package lodge

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lodge-sh/lodge/pkg/logging"
)

// Build metadata, set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type rootFlags struct {
	verbosity int
	workspace string
	force     bool
	dryRun    bool
}

// NewRootCmd builds the lodge command tree.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "lodge",
		Short: "A package manager for structured configuration content",
		Long: `lodge installs, synchronizes, and uninstalls bundles of structured
configuration content across platform conventions, resolving dependency
versions and tracking per-file provenance so uninstalls remove exactly
what an install wrote.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(flags.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().CountVarP(&flags.verbosity, "verbose", "v",
		"Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().StringVar(&flags.workspace, "workspace", "",
		"Workspace root (default: $LODGE_WORKSPACE or the current directory)")
	rootCmd.PersistentFlags().BoolVar(&flags.force, "force", false,
		"Reinstall packages already at their resolved version and override version conflicts")
	rootCmd.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false,
		"Preview changes without writing anything")

	rootCmd.AddCommand(newInstallCmd(flags))
	rootCmd.AddCommand(newUninstallCmd(flags))
	rootCmd.AddCommand(newListCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lodge version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
