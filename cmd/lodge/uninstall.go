package lodge

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodge-sh/lodge/pkg/events"
	"github.com/lodge-sh/lodge/pkg/index"
	"github.com/lodge-sh/lodge/pkg/uninstall"
)

func newUninstallCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall PACKAGE",
		Short: "Remove an installed package's files from the workspace",
		Long: `Removes exactly the files and keys the named package contributed,
using the provenance recorded at install time. Shared structured files
keep other packages' content; composite host files keep their other
sections.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			environment, err := loadEnv(flags)
			if err != nil {
				return err
			}
			packageName := args[0]

			bus := events.NewBus()
			defer bus.Close()

			runID := events.NewRunID()
			bus.Publish(events.Event{Type: events.UninstallStarted, RunID: runID, Data: packageName})

			store := index.NewStore(environment.fs)
			uninstaller := uninstall.New(environment.fs, store, environment.platforms)

			result, err := uninstaller.Remove(environment.cfg.TargetDir, packageName)
			if err != nil {
				return err
			}

			bus.Publish(events.Event{Type: events.UninstallRemoved, RunID: runID, Data: result})
			bus.Publish(events.Event{Type: events.UninstallCompleted, RunID: runID, Data: packageName})

			fmt.Printf("uninstalled %s: %d file(s) removed, %d updated\n",
				result.PackageName, len(result.Removed), len(result.Updated))
			for _, warning := range result.Warnings {
				fmt.Printf("  warning: %s\n", warning)
			}
			return nil
		},
	}
}
