package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/crewradar/internal/db"
	"github.com/zulandar/crewradar/internal/kv"
	"github.com/zulandar/crewradar/internal/rules"
)

// writeConfig writes a sqlite-backed config into a temp dir and returns its path.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
jira:
  base_url: https://acme.atlassian.net
  email: bot@acme.test
  api_token: tok
`, filepath.Join(dir, "crew.db"))
	path := filepath.Join(dir, "crewradar.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return buf.String(), err
}

func TestDBMigrateCmd(t *testing.T) {
	path := writeConfig(t)

	out, err := run(t, "db", "migrate", "-c", path)
	if err != nil {
		t.Fatalf("db migrate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Connected to sqlite database") {
		t.Errorf("expected connect line, got: %s", out)
	}
	if !strings.Contains(out, fmt.Sprintf("Migrated %d tables", len(db.AllModels()))) {
		t.Errorf("expected table count, got: %s", out)
	}
}

func TestDBMigrateCmd_MissingConfig(t *testing.T) {
	_, err := run(t, "db", "migrate", "-c", "/nonexistent/crewradar.yaml")
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Errorf("error = %v, want 'load config'", err)
	}
}

func TestRulesListCmd_Empty(t *testing.T) {
	path := writeConfig(t)
	if _, err := run(t, "db", "migrate", "-c", path); err != nil {
		t.Fatalf("db migrate: %v", err)
	}

	out, err := run(t, "rules", "list", "-c", path)
	if err != nil {
		t.Fatalf("rules list: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No rules configured.") {
		t.Errorf("expected empty message, got: %s", out)
	}
}

func TestRulesListCmd_ShowsRules(t *testing.T) {
	path := writeConfig(t)
	cfg, gormDB, err := connectFromConfig(path)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}

	store := rules.NewStore(kv.NewGormStore(gormDB))
	_, err = store.Save(context.Background(), []rules.Rule{
		{
			ID:               "r1",
			ProjectID:        "10000",
			RequestTypeID:    "12",
			GroupID:          "service-desk",
			Strategy:         rules.AvailableOrAway,
			MaxIssuesEnabled: true,
			MaxIssues:        3,
			Exception:        rules.Exception{Enabled: true, Keyword: "urgent", AssigneeIDs: []string{"x", "y"}},
		},
		{ID: "r2", ProjectID: "10000", RequestTypeID: "13"},
	})
	if err != nil {
		t.Fatalf("save rules: %v", err)
	}

	out, err := run(t, "rules", "list", "-c", path)
	if err != nil {
		t.Fatalf("rules list: %v\n%s", err, out)
	}
	for _, want := range []string{"ID", "r1", "service-desk", "RoundRobinAvailableAway", `"urgent" -> 2`, "r2", "(agent group)", "RoundRobinAvailable "} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}
