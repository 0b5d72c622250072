package lodge

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lodge-sh/lodge/pkg/errors"
	"github.com/lodge-sh/lodge/pkg/events"
	"github.com/lodge-sh/lodge/pkg/index"
	"github.com/lodge-sh/lodge/pkg/install"
	"github.com/lodge-sh/lodge/pkg/solver"
	"github.com/lodge-sh/lodge/pkg/source"
	"github.com/lodge-sh/lodge/pkg/types"
)

func newInstallCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Resolve and install the workspace's dependencies",
		Long: `Reads the workspace manifest, resolves the dependency graph to
concrete versions, and projects every resolved package's content into
the enabled platforms. Provenance is recorded so that uninstall can
undo exactly what install wrote.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			environment, err := loadEnv(flags)
			if err != nil {
				return err
			}

			bus := events.NewBus()
			defer bus.Close()
			subscribeReporting(bus)

			installer := install.New(
				environment.fs,
				index.NewStore(environment.fs),
				source.NewLoaderSet(source.NewPathLoader(environment.fs, environment.paths.WorkspaceRoot())),
				bus,
			)

			result, err := installer.Run(cmd.Context(), install.Request{
				WorkspaceDir: environment.paths.WorkspaceRoot(),
				TargetDir:    environment.cfg.TargetDir,
				Platforms:    environment.platforms,
				Options:      types.InstallOptions{Force: flags.force, DryRun: flags.dryRun},
				OnConflict:   promptConflict,
			})
			if err != nil {
				return err
			}

			printInstallResult(result)
			return nil
		},
	}
}

func subscribeReporting(bus *events.Bus) {
	bus.Subscribe(events.InstallConflict, func(e events.Event) {
		if conflict, ok := e.Data.(types.ConflictRecord); ok {
			fmt.Printf("conflict: %s kept %s, dropped %s\n",
				conflict.TargetPath, conflict.Winner.PackageName, loserNames(conflict))
		}
	})
}

func loserNames(conflict types.ConflictRecord) string {
	names := make([]string, 0, len(conflict.Losers))
	for _, loser := range conflict.Losers {
		names = append(names, loser.PackageName)
	}
	return strings.Join(names, ", ")
}

// promptConflict asks the user to pick a version for an unresolvable
// constraint set. An empty answer aborts the run.
func promptConflict(conflict solver.Conflict) (string, error) {
	fmt.Printf("no version of %s satisfies %s (available: %s)\n",
		conflict.Name, strings.Join(conflict.Ranges, ", "), strings.Join(conflict.Available, ", "))
	fmt.Print("version to use (empty to abort): ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.New(errors.ErrResolveAborted, "aborted by user")
	}
	return answer, nil
}

func printInstallResult(result *install.Result) {
	if result.DryRun {
		fmt.Printf("dry run: %d package(s) would be installed\n", len(result.Installed))
	} else {
		fmt.Printf("installed %d package(s)\n", len(result.Installed))
	}
	for _, id := range result.Installed {
		fmt.Printf("  %s\n", id)
	}
	for _, skipped := range result.Skipped {
		fmt.Printf("  skipped %s (%s)\n", skipped.ID, skipped.Reason)
	}
	for _, conflict := range result.ResolutionConflicts {
		fmt.Printf("  unresolved: %s (%s)\n", conflict.Name, strings.Join(conflict.Ranges, ", "))
	}
	for _, warning := range result.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}
