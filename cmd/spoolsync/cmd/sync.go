package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/spoolsync/internal/config"
	"github.com/agentstation/spoolsync/pkg/sync"
)

func newSyncCmd(cfg **config.Config) *cobra.Command {
	var dryRun, prune bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass",
		Long: `Runs a single reconciliation pass: loads the filament catalog, fetches the
inventory snapshot, resolves and diffs both sides, and applies the resulting
plan. Conflicts that need manual resolution are reported and left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts []sync.Option
			if cmd.Flags().Changed("dry-run") {
				opts = append(opts, sync.WithDryRun(dryRun))
			}
			if cmd.Flags().Changed("prune") {
				opts = append(opts, sync.WithPruneRemote(prune))
			}

			syncer, _, err := buildSyncer(*cfg, opts...)
			if err != nil {
				return err
			}

			result, err := syncer.Sync(cmd.Context())
			if result != nil {
				fmt.Print(result.Report())
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "plan without applying")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete remote profiles missing locally instead of adopting them")
	return cmd
}
