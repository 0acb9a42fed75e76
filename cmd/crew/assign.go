package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAssignCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "assign <ISSUE-KEY>",
		Short: "Run the assignment flow for one issue",
		Long:  "Fetches the issue, matches its rule and assigns it exactly as a creation event would.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssign(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "crewradar.yaml", "path to CrewRadar config file")
	return cmd
}

func runAssign(cmd *cobra.Command, configPath, key string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	out, err := a.engine.IngestIssue(context.Background(), key)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Issue:      %s\n", out.IssueKey)
	fmt.Fprintf(w, "Result:     %s\n", out.Status)
	if out.RuleID != "" {
		fmt.Fprintf(w, "Rule:       %s\n", out.RuleID)
	}
	if out.AccountID != "" {
		fmt.Fprintf(w, "Assignee:   %s (%s)\n", out.AccountID, out.Source)
	}
	if len(out.Candidates) > 0 {
		fmt.Fprintf(w, "Candidates: %s\n", strings.Join(out.Candidates, ", "))
	}
	if out.Error != "" {
		fmt.Fprintf(w, "Error:      %s\n", out.Error)
	}
	return nil
}
