package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kareemsasa3/rinkcal/internal/classify"
)

func newRulesCmd() *cobra.Command {
	var name, pageURL string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the page rejection rules, or test a link against them",
		Example: `  rinkcal rules
  rinkcal rules --name "Bantam Tournament" --url https://www.byha.org/page/show/1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			c := a.scraper.Classifier()
			out := cmd.OutOrStdout()
			if name == "" && pageURL == "" {
				renderRules(out, c.Rules())
				return nil
			}
			reject, rule := c.IsLikelyNonTeamPage(name, pageURL)
			switch {
			case reject:
				fmt.Fprintf(out, "reject (%s)\n", rule)
			case rule != "":
				fmt.Fprintf(out, "keep (%s)\n", rule)
			default:
				fmt.Fprintln(out, "keep")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "link text or page title to test")
	cmd.Flags().StringVar(&pageURL, "url", "", "link URL to test")
	return cmd
}

func renderRules(w io.Writer, rules []classify.Rule) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Rule", "On", "Match", "Pattern", "Unless", "Verdict"})
	for i, r := range rules {
		t.AppendRow(table.Row{i + 1, r.Name, r.Target, r.Kind, r.Pattern, r.Unless, r.Verdict})
	}
	t.AppendFooter(table.Row{"", "Total", "", "", "", "", len(rules)})
	t.Render()
}
