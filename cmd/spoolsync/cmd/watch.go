package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/spoolsync/internal/config"
	"github.com/agentstation/spoolsync/internal/orca"
	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/logging"
)

func newWatchCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the filament directory and sync on changes",
		Long: `Runs an initial reconciliation pass, then watches the filament directory and
runs another pass after each debounced burst of profile file changes. Stops on
interrupt.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			syncer, store, err := buildSyncer(*cfg)
			if err != nil {
				return err
			}

			runPass := func(ctx context.Context) {
				result, err := syncer.Sync(ctx)
				switch {
				case errors.Is(err, errors.ErrPassInProgress):
					// The previous pass is still running; the watcher will
					// fire again on the next change.
				case err != nil:
					logging.Ctx(ctx).Error().Err(err).Msg("reconciliation pass failed")
				}
				if result != nil {
					fmt.Print(result.Report())
				}
			}

			runPass(cmd.Context())

			watcher, err := orca.NewWatcher(store.Dir(), (*cfg).Debounce)
			if err != nil {
				return err
			}

			logging.Ctx(cmd.Context()).Info().Str("dir", store.Dir()).Msg("watching filament directory")
			err = watcher.Run(cmd.Context(), runPass)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
