package history

import (
	"testing"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/config"
	"github.com/fieldpilot/fieldpilot/internal/db"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestLog_And_List(t *testing.T) {
	gdb := testDB(t)

	if err := Log(gdb, "task-1", "mgr-1", ActionCreated, LogOpts{}); err != nil {
		t.Fatalf("Log(created): %v", err)
	}
	if err := Log(gdb, "task-1", "mgr-1", ActionStatusChanged, LogOpts{
		Field: "status", OldValue: "new", NewValue: "closed",
	}); err != nil {
		t.Fatalf("Log(status_changed): %v", err)
	}
	if err := Log(gdb, "task-2", "tech-1", ActionArrived, LogOpts{
		Details: map[string]interface{}{"time": time.Now().Format(time.RFC3339)},
	}); err != nil {
		t.Fatalf("Log(arrived): %v", err)
	}

	entries, err := List(gdb, "task-1", Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Action != ActionCreated || entries[1].Action != ActionStatusChanged {
		t.Errorf("entries out of chronological order: %s, %s", entries[0].Action, entries[1].Action)
	}
	if entries[1].OldValue != "new" || entries[1].NewValue != "closed" {
		t.Errorf("status change values = %q → %q, want new → closed", entries[1].OldValue, entries[1].NewValue)
	}
}

func TestList_Filters(t *testing.T) {
	gdb := testDB(t)

	for _, e := range []struct{ actor, action string }{
		{"tech-1", ActionTravelStarted},
		{"tech-1", ActionArrived},
		{"tech-2", ActionTravelStarted},
	} {
		if err := Log(gdb, "task-1", e.actor, e.action, LogOpts{}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	byAction, err := List(gdb, "task-1", Filters{Action: ActionTravelStarted})
	if err != nil {
		t.Fatalf("List(action): %v", err)
	}
	if len(byAction) != 2 {
		t.Errorf("len(byAction) = %d, want 2", len(byAction))
	}

	byActor, err := List(gdb, "task-1", Filters{ActorID: "tech-2"})
	if err != nil {
		t.Fatalf("List(actor): %v", err)
	}
	if len(byActor) != 1 || byActor[0].Action != ActionTravelStarted {
		t.Errorf("byActor = %v, want single travel_started by tech-2", byActor)
	}

	both, err := List(gdb, "task-1", Filters{Action: ActionArrived, ActorID: "tech-1"})
	if err != nil {
		t.Fatalf("List(both): %v", err)
	}
	if len(both) != 1 {
		t.Errorf("len(both) = %d, want 1", len(both))
	}
}

func TestSystemComment(t *testing.T) {
	gdb := testDB(t)

	if err := SystemComment(gdb, "task-1", "Dana Flores arrived at site at 2026-03-02 09:00:00"); err != nil {
		t.Fatalf("SystemComment: %v", err)
	}

	comments, err := Comments(gdb, "task-1")
	if err != nil {
		t.Fatalf("Comments: %v", err)
	}
	if len(comments) != 1 {
		t.Fatalf("len(comments) = %d, want 1", len(comments))
	}
	if !comments[0].SystemGenerated {
		t.Error("comment should be marked system-generated")
	}
	if comments[0].AuthorID != "" {
		t.Errorf("system comment AuthorID = %q, want empty", comments[0].AuthorID)
	}
}

func TestAddComment_WritesLedger(t *testing.T) {
	gdb := testDB(t)

	c, err := AddComment(gdb, "task-1", "mgr-1", "please re-check the compressor")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if c.SystemGenerated {
		t.Error("user comment should not be system-generated")
	}

	entries, err := List(gdb, "task-1", Filters{Action: ActionCommentAdded})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorID != "mgr-1" {
		t.Errorf("comment ledger entry = %v, want one by mgr-1", entries)
	}
}

func TestAddComment_EmptyRejected(t *testing.T) {
	gdb := testDB(t)

	if _, err := AddComment(gdb, "task-1", "mgr-1", ""); err == nil {
		t.Fatal("empty comment should be rejected")
	}
}
