package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/crewradar/internal/heartbeat"
)

func newSessionCmd() *cobra.Command {
	var (
		configPath string
		agent      string
		schedule   string
	)

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Keep an agent online by sending heartbeats",
		Long:  "Sends a heartbeat for the agent now and on every schedule tick until interrupted, syncing Teams presence when enabled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, configPath, agent, schedule)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "crewradar.yaml", "path to CrewRadar config file")
	cmd.Flags().StringVar(&agent, "agent", "", "agent account id (required)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "tick schedule (default from config)")
	cmd.MarkFlagRequired("agent")
	return cmd
}

func runSession(cmd *cobra.Command, configPath, agent, schedule string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	if schedule == "" {
		schedule = a.cfg.Heartbeat.Schedule
	}
	out := cmd.OutOrStdout()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, ending session...\n", sig)
		cancel()
	}()

	fmt.Fprintf(out, "Session for %s started (%s)\n", agent, schedule)
	return a.heartbeat.RunSession(ctx, agent, schedule, func(r heartbeat.Result, err error) {
		if err != nil {
			fmt.Fprintf(out, "%s  heartbeat failed: %v\n", time.Now().Format("15:04:05"), err)
			return
		}
		fmt.Fprintf(out, "%s  %-26s (%s)\n", time.Now().Format("15:04:05"), r.Status, r.Source)
	})
}
