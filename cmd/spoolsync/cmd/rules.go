package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentstation/spoolsync/internal/config"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

func newRulesCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the configured tag rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := (*cfg).RulesFile
			if path == "" {
				fmt.Println("no rules file configured")
				return nil
			}

			rules, err := profiles.LoadRules(path)
			if err != nil {
				return err
			}
			if len(rules) == 0 {
				fmt.Println("no rules defined")
				return nil
			}

			profiles.SortRules(rules)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRECEDENCE\tTAG\tPROPERTY\tVALUE")
			for _, r := range rules {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Precedence, r.Tag, r.Property, r.Value)
			}
			return w.Flush()
		},
	}
}
