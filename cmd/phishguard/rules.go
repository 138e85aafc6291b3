package main

import (
	"github.com/spf13/cobra"

	"github.com/mikey/phish-guard/internal/adapters/render"
	"github.com/mikey/phish-guard/internal/heuristics"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the active heuristic rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return invoke(func(rules *heuristics.RuleSet, term *render.Terminal) error {
			names := make([]string, 0, len(rules.Rules()))
			for _, r := range rules.Rules() {
				names = append(names, r.Name)
			}
			term.ShowRules(rules.Describe(names))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
