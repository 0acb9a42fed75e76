package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <accountId>",
		Short: "Show an agent's status and last presence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "crewradar.yaml", "path to CrewRadar config file")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath, accountID string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	st, err := a.roster.AgentStatus(context.Background(), accountID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Agent:          %s\n", st.AccountID)
	fmt.Fprintf(out, "Status:         %s\n", st.Status)
	if st.LastHeartbeat != nil {
		fmt.Fprintf(out, "Last heartbeat: %s\n", st.LastHeartbeat.Local().Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "Last heartbeat: never")
	}
	if p := st.Presence; p != nil {
		fmt.Fprintf(out, "Teams:          %s / %s (user %s)\n", p.Availability, p.Activity, p.DirectoryUserID)
		if p.IsOutOfOffice {
			fmt.Fprintln(out, "                out of office")
		}
	}
	return nil
}

func newAgentsCmd() *cobra.Command {
	var (
		configPath string
		group      string
	)

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List agents of a group with their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgents(cmd, configPath, group)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "crewradar.yaml", "path to CrewRadar config file")
	cmd.Flags().StringVarP(&group, "group", "g", "", "group name (default: the service desk agent group)")
	return cmd
}

func runAgents(cmd *cobra.Command, configPath, group string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	agents, err := a.roster.ListStatuses(context.Background(), group)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(agents) == 0 {
		fmt.Fprintln(out, "No agents found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tACCOUNT\tSTATUS\tONLINE\tLAST SEEN")
	for _, ag := range agents {
		seen := "never"
		if ag.MinutesAgo != nil {
			seen = fmt.Sprintf("%dm ago", *ag.MinutesAgo)
		}
		online := "no"
		if ag.Online {
			online = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", ag.DisplayName, ag.AccountID, ag.Status, online, seen)
	}
	return w.Flush()
}
