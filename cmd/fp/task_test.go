package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// writeTestConfig writes a sqlite-backed config into a temp dir and returns
// its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "fieldpilot.yaml")
	cfg := fmt.Sprintf(`tenant: acme
database:
  driver: sqlite
  path: %s
staff:
  - id: tech-1
    name: Dana Flores
    technician: true
  - id: tech-2
    name: Miguel Santos
    technician: true
  - id: mgr-1
    name: Alex Kim
equipment:
  - equip-1
  - equip-2
`, filepath.Join(dir, "fieldpilot.db"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

// run executes the CLI with args and returns its combined output.
func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("fp %s: %v\n%s", strings.Join(args, " "), err, buf.String())
	}
	return buf.String()
}

// runErr executes the CLI expecting failure and returns the error.
func runErr(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("fp %s: expected error\n%s", strings.Join(args, " "), buf.String())
	}
	return err
}

var taskNumberRe = regexp.MustCompile(`TASK-\d{4}-\d{6}`)

func TestTaskWorkflow(t *testing.T) {
	cfg := writeTestConfig(t)
	run(t, "db", "migrate", "-c", cfg)

	out := run(t, "task", "create", "-c", cfg,
		"--equipment", "equip-1", "--title", "Chiller inspection", "--actor", "mgr-1")
	number := taskNumberRe.FindString(out)
	if number == "" {
		t.Fatalf("create output %q contains no task number", out)
	}

	out = run(t, "task", "list", "-c", cfg)
	if !strings.Contains(out, number) || !strings.Contains(out, "Chiller inspection") {
		t.Errorf("list output missing created task: %s", out)
	}

	run(t, "task", "assign", number, "-c", cfg, "--technician", "tech-1", "--actor", "mgr-1")
	out = run(t, "task", "show", number, "-c", cfg)
	if !strings.Contains(out, "Dana Flores") {
		t.Errorf("show output missing assignee name: %s", out)
	}

	// Full visit, then close.
	run(t, "visit", "travel", number, "-c", cfg, "--tech", "tech-1")
	run(t, "visit", "arrive", number, "-c", cfg, "--tech", "tech-1")
	out = run(t, "visit", "depart", number, "-c", cfg, "--tech", "tech-1", "--equipment-status", "functional")
	if !strings.Contains(out, "functional") {
		t.Errorf("depart output missing equipment status: %s", out)
	}

	out = run(t, "task", "status", number, "pending", "-c", cfg, "--actor", "mgr-1")
	if !strings.Contains(out, "pending") {
		t.Errorf("status output = %s", out)
	}
	run(t, "task", "status", number, "closed", "-c", cfg, "--actor", "mgr-1")

	out = run(t, "history", number, "-c", cfg)
	for _, action := range []string{"created", "assigned", "travel_started", "arrived", "departed", "status_changed"} {
		if !strings.Contains(out, action) {
			t.Errorf("history output missing %q: %s", action, out)
		}
	}

	out = run(t, "report", "task", number, "-c", cfg)
	if !strings.Contains(out, "Visits:   1") {
		t.Errorf("report output = %s", out)
	}
}

func TestTaskWorkflow_CloseBlockedOnSite(t *testing.T) {
	cfg := writeTestConfig(t)
	run(t, "db", "migrate", "-c", cfg)

	out := run(t, "task", "create", "-c", cfg,
		"--equipment", "equip-1", "--title", "Pump overhaul", "--actor", "mgr-1")
	number := taskNumberRe.FindString(out)

	run(t, "visit", "travel", number, "-c", cfg, "--tech", "tech-1")
	run(t, "visit", "arrive", number, "-c", cfg, "--tech", "tech-1")

	err := runErr(t, "task", "status", number, "closed", "-c", cfg, "--actor", "mgr-1")
	if !strings.Contains(err.Error(), "Dana Flores") {
		t.Errorf("close error %q should name the on-site technician", err.Error())
	}
}

func TestTaskCreate_UnknownEquipment(t *testing.T) {
	cfg := writeTestConfig(t)
	run(t, "db", "migrate", "-c", cfg)

	err := runErr(t, "task", "create", "-c", cfg,
		"--equipment", "ghost", "--title", "x", "--actor", "mgr-1")
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error = %q, want unknown equipment mention", err.Error())
	}
}

func TestTeamWorkflow(t *testing.T) {
	cfg := writeTestConfig(t)
	run(t, "db", "migrate", "-c", cfg)

	out := run(t, "team", "create", "-c", cfg,
		"--name", "North crew", "--member", "tech-1", "--member", "tech-2", "--actor", "mgr-1")
	if !strings.Contains(out, "2 member(s)") {
		t.Errorf("team create output = %s", out)
	}

	out = run(t, "team", "list", "-c", cfg)
	if !strings.Contains(out, "North crew") {
		t.Errorf("team list output = %s", out)
	}

	// Non-technicians cannot join.
	err := runErr(t, "team", "create", "-c", cfg,
		"--name", "Managers", "--member", "mgr-1", "--actor", "mgr-1")
	if !strings.Contains(err.Error(), "not a technician") {
		t.Errorf("error = %q, want technician capability rejection", err.Error())
	}
}

func TestVisitDepart_RequiresEquipmentStatus(t *testing.T) {
	cfg := writeTestConfig(t)
	run(t, "db", "migrate", "-c", cfg)

	out := run(t, "task", "create", "-c", cfg,
		"--equipment", "equip-1", "--title", "Belt swap", "--actor", "mgr-1")
	number := taskNumberRe.FindString(out)

	run(t, "visit", "travel", number, "-c", cfg, "--tech", "tech-1")
	run(t, "visit", "arrive", number, "-c", cfg, "--tech", "tech-1")

	err := runErr(t, "visit", "depart", number, "-c", cfg, "--tech", "tech-1", "--equipment-status", "okayish")
	if !strings.Contains(err.Error(), "equipment status") {
		t.Errorf("error = %q, want equipment status validation", err.Error())
	}
}
