package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zulandar/crewradar/internal/kv"
	"github.com/zulandar/crewradar/internal/rules"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Assignment rule commands",
	}

	cmd.AddCommand(newRulesListCmd())
	return cmd
}

func newRulesListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured assignment rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "crewradar.yaml", "path to CrewRadar config file")
	return cmd
}

func runRulesList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	rs, err := rules.NewStore(kv.NewGormStore(gormDB)).List(context.Background())
	if err != nil {
		return err
	}
	return printRules(cmd, rs)
}

func printRules(cmd *cobra.Command, rs []rules.Rule) error {
	out := cmd.OutOrStdout()
	if len(rs) == 0 {
		fmt.Fprintln(out, "No rules configured.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tREQUEST TYPE\tGROUP\tSTRATEGY\tREALTIME\tMAX ISSUES\tEXCEPTION")
	for _, r := range rs {
		group := r.GroupID
		if group == "" {
			group = "(agent group)"
		}
		limit := "-"
		if n, ok := r.WorkloadLimit(); ok {
			limit = fmt.Sprintf("%d", n)
		}
		exc := "-"
		if r.Exception.Enabled {
			exc = fmt.Sprintf("%q -> %d", r.Exception.Keyword, len(r.Exception.Assignees()))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
			r.ID, r.ProjectID, r.RequestTypeID, group, r.Strategy.OrDefault(), r.RealtimeRequired, limit, exc)
	}
	return w.Flush()
}
