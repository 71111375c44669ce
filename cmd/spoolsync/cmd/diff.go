package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/spoolsync/internal/config"
	"github.com/agentstation/spoolsync/pkg/sync"
)

func newDiffCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show what a sync pass would change",
		Long: `Resolves and diffs both sides without applying anything, then prints the
planned operations and any conflicts. Equivalent to "sync --dry-run".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			syncer, _, err := buildSyncer(*cfg, sync.WithDryRun(true))
			if err != nil {
				return err
			}

			result, err := syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Print(result.Report())
			if result.HasConflicts() {
				fmt.Println()
				fmt.Println("conflicts needing manual resolution:")
				for _, c := range result.Conflicts {
					fmt.Printf("  %s.%s: local %q vs remote %q\n", c.ProfileID, c.Property, c.LocalValue, c.RemoteValue)
				}
			}
			return nil
		},
	}
}
