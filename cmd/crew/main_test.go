package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/zulandar/crewradar/internal/config"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version", "--env-file", ""})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "crew dev") {
		t.Errorf("expected output to contain 'crew dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.2.0", "abc123", "2026-10-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	cmd := newVersionCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.Run(cmd, nil)

	expected := "crew 1.2.0 (commit: abc123, built: 2026-10-01)\n"
	if buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}
}

func TestRootCmdHelp(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "CrewRadar") {
		t.Errorf("expected help output to contain 'CrewRadar', got: %s", out)
	}
	for _, sub := range []string{"version", "db", "serve", "session", "assign", "status", "agents", "rules"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help output to list %q subcommand", sub)
		}
	}
	if !strings.Contains(out, "--env-file") {
		t.Errorf("expected help output to mention '--env-file', got: %s", out)
	}
}

func TestRootCmdNoArgs(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("root command with no args failed: %v", err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"version"})

	if code := execute(cmd); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}

func TestExecuteError(t *testing.T) {
	cmd := &cobra.Command{
		Use:           "failing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("intentional error")
		},
	}
	cmd.SetArgs([]string{})
	if code := execute(cmd); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestSubcommandHelp(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"db", "--help"}, []string{"Database management", "migrate"}},
		{[]string{"db", "migrate", "--help"}, []string{"--config", "crewradar.yaml"}},
		{[]string{"serve", "--help"}, []string{"--port", "--config"}},
		{[]string{"session", "--help"}, []string{"--agent", "--schedule"}},
		{[]string{"assign", "--help"}, []string{"ISSUE-KEY", "creation event"}},
		{[]string{"status", "--help"}, []string{"accountId"}},
		{[]string{"agents", "--help"}, []string{"--group"}},
		{[]string{"rules", "--help"}, []string{"list"}},
		{[]string{"rules", "list", "--help"}, []string{"--config"}},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			cmd := newRootCmd()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			if err := cmd.Execute(); err != nil {
				t.Fatalf("%v failed: %v", tt.args, err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("expected help to contain %q, got: %s", w, out)
				}
			}
		})
	}
}

func TestAssignCmd_RequiresKey(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"assign"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when issue key is missing")
	}
}

func TestSessionCmd_RequiresAgent(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"session", "-c", "/nonexistent/crewradar.yaml"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error when --agent is missing")
	}
	if !strings.Contains(err.Error(), "agent") {
		t.Errorf("error = %v, want mention of agent", err)
	}
}

func TestLoadEnv_MissingFile(t *testing.T) {
	if err := loadEnv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
	if err := loadEnv(""); err != nil {
		t.Errorf("empty path should be ignored, got %v", err)
	}
}

func TestLoadEnv_SetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CREW_TEST_TOKEN=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CREW_TEST_TOKEN", "")
	os.Unsetenv("CREW_TEST_TOKEN")

	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv: %v", err)
	}
	if got := os.Getenv("CREW_TEST_TOKEN"); got != "from-file" {
		t.Errorf("CREW_TEST_TOKEN = %q, want from-file", got)
	}
}

func TestLoadEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("CREW_TEST_KEEP=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CREW_TEST_KEEP", "from-shell")

	if err := loadEnv(path); err != nil {
		t.Fatalf("loadEnv: %v", err)
	}
	if got := os.Getenv("CREW_TEST_KEEP"); got != "from-shell" {
		t.Errorf("CREW_TEST_KEEP = %q, want from-shell", got)
	}
}

func TestBuildNotifier_NoneConfigured(t *testing.T) {
	n, err := buildNotifier(config.NotifyConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != nil {
		t.Errorf("expected nil notifier, got %T", n)
	}
}

func TestBuildNotifier_SlackAndDiscord(t *testing.T) {
	n, err := buildNotifier(config.NotifyConfig{
		Slack:   config.ChatConfig{BotToken: "xoxb-1", ChannelID: "C1"},
		Discord: config.ChatConfig{BotToken: "bot-1", ChannelID: "D1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == nil {
		t.Fatal("expected a notifier")
	}
}
