package lodge

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lodge-sh/lodge/pkg/index"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			environment, err := loadEnv(flags)
			if err != nil {
				return err
			}

			idx, err := index.NewStore(environment.fs).Read(environment.cfg.TargetDir)
			if err != nil {
				return err
			}

			names := idx.PackageNames()
			if len(names) == 0 {
				fmt.Println("no packages installed")
				return nil
			}
			for _, name := range names {
				entry := idx.Get(name)
				if entry.Version != "" {
					fmt.Printf("%s@%s (%d file(s))\n", entry.PackageName, entry.Version, len(entry.Files))
				} else {
					fmt.Printf("%s (%d file(s))\n", entry.PackageName, len(entry.Files))
				}
			}
			return nil
		},
	}
}
