// Package cmd implements the spoolsync command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agentstation/spoolsync/internal/config"
	"github.com/agentstation/spoolsync/internal/orca"
	"github.com/agentstation/spoolsync/internal/spoolman"
	"github.com/agentstation/spoolsync/pkg/logging"
	"github.com/agentstation/spoolsync/pkg/sync"
)

// BuildInfo carries version details stamped at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Execute runs the CLI with the given arguments taken from os.Args.
func Execute(ctx context.Context, info BuildInfo) error {
	root := newRootCmd(info)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newRootCmd(info BuildInfo) *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:   "spoolsync",
		Short: "Reconcile slicer filament profiles with a Spoolman inventory",
		Long: `spoolsync keeps a local OrcaSlicer filament catalog and a Spoolman-style
inventory server in agreement. It resolves profile inheritance on both sides,
diffs the effective settings, and pushes or pulls each difference according to
per-field authority, sync modes, and revision markers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			applyFlags(cmd, cfg)

			level := cfg.LogLevel
			if cfg.Verbose {
				level = "debug"
			}
			if cfg.Quiet {
				level = "error"
			}
			logging.Configure(&logging.Config{
				Level:   level,
				Format:  cfg.LogFormat,
				Output:  cfg.LogOutput,
				NoColor: cfg.NoColor,
			})
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default ~/.spoolsync.yaml)")
	flags.StringP("filament-dir", "d", "", "OrcaSlicer filament profile directory")
	flags.String("rules", "", "tag rules YAML file")
	flags.String("url", "", "inventory server base URL")
	flags.String("api-key", "", "inventory server API key")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.BoolP("quiet", "q", false, "errors only")
	flags.Bool("no-color", false, "disable colored output")
	_ = viper.BindPFlag("config", flags.Lookup("config"))

	root.AddCommand(
		newSyncCmd(&cfg),
		newDiffCmd(&cfg),
		newWatchCmd(&cfg),
		newRulesCmd(&cfg),
		newVersionCmd(info),
	)
	return root
}

// applyFlags lets explicitly-set flags win over config file and env values.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("filament-dir") {
		cfg.FilamentDir, _ = flags.GetString("filament-dir")
	}
	if flags.Changed("rules") {
		cfg.RulesFile, _ = flags.GetString("rules")
	}
	if flags.Changed("url") {
		cfg.SpoolmanURL, _ = flags.GetString("url")
	}
	if flags.Changed("api-key") {
		cfg.SpoolmanAPIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("quiet") {
		cfg.Quiet, _ = flags.GetBool("quiet")
	}
	if flags.Changed("no-color") {
		cfg.NoColor, _ = flags.GetBool("no-color")
	}
}

// buildSyncer assembles the local store, backend, and syncer from config.
func buildSyncer(cfg *config.Config, extra ...sync.Option) (*sync.Syncer, *orca.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	store, err := orca.NewStore(cfg.FilamentDir, cfg.RulesFile)
	if err != nil {
		return nil, nil, err
	}

	var backendOpts []spoolman.Option
	if cfg.AuthHeader != "" {
		backendOpts = append(backendOpts, spoolman.WithAuth(&spoolman.HeaderAuth{Header: cfg.AuthHeader}))
	}
	backend, err := spoolman.New(cfg.SpoolmanURL, cfg.SpoolmanAPIKey, backendOpts...)
	if err != nil {
		return nil, nil, err
	}

	opts := []sync.Option{
		sync.WithDryRun(cfg.DryRun),
		sync.WithPruneRemote(cfg.PruneRemote),
		sync.WithMaxRetries(cfg.MaxRetries),
		sync.WithBackoffBase(cfg.BackoffBase),
		sync.WithMaxParallel(cfg.MaxParallel),
		sync.WithTimeout(cfg.Timeout),
	}
	opts = append(opts, extra...)

	syncer, err := sync.New(store, backend, opts...)
	if err != nil {
		return nil, nil, err
	}
	return syncer, store, nil
}
