package assignment

import (
	"testing"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/config"
	"github.com/fieldpilot/fieldpilot/internal/db"
	"github.com/fieldpilot/fieldpilot/internal/history"
	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/taskerr"
	"github.com/fieldpilot/fieldpilot/internal/team"
	"github.com/google/uuid"
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

func testDir() identity.Directory {
	return identity.NewStaticDirectory([]identity.Identity{
		{ID: "tech-1", Name: "Dana Flores", Technician: true},
		{ID: "tech-2", Name: "Miguel Santos", Technician: true},
		{ID: "mgr-1", Name: "Alex Kim", Technician: false},
	})
}

func seedTask(t *testing.T, gdb *gorm.DB, number string) *models.Task {
	t.Helper()
	task := models.Task{
		ID:          uuid.NewString(),
		TaskNumber:  number,
		EquipmentID: "equip-1",
		Title:       "Chiller inspection",
		Status:      models.TaskStatusNew,
		Priority:    models.PriorityMedium,
		CreatedBy:   "mgr-1",
	}
	if err := gdb.Create(&task).Error; err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return &task
}

func TestAssign_Individual(t *testing.T) {
	gdb := testDB(t)
	task := seedTask(t, gdb, "TASK-2026-000001")

	a, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if a.IsTeam() {
		t.Error("individual assignment reported as team")
	}
	if a.WorkStatus != models.WorkStatusOpen {
		t.Errorf("WorkStatus = %q, want open", a.WorkStatus)
	}

	entries, err := history.List(gdb, task.ID, history.Filters{Action: history.ActionAssigned})
	if err != nil {
		t.Fatalf("history.List: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(ledger) = %d, want 1", len(entries))
	}
}

func TestAssign_Duplicate(t *testing.T) {
	gdb := testDB(t)
	task := seedTask(t, gdb, "TASK-2026-000001")

	if _, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	_, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1")
	if !taskerr.HasReason(err, taskerr.ReasonDuplicateAssignment) {
		t.Fatalf("duplicate assign error = %v, want duplicate_assignment", err)
	}

	// A different technician on the same task is fine.
	if _, err := Assign(gdb, task.ID, Individual("tech-2"), "mgr-1"); err != nil {
		t.Errorf("second technician: %v", err)
	}
}

func TestAssign_Team(t *testing.T) {
	gdb := testDB(t)
	dir := testDir()
	task := seedTask(t, gdb, "TASK-2026-000001")

	crew, err := team.Create(gdb, dir, team.CreateOpts{
		Name:      "North crew",
		MemberIDs: []string{"tech-1", "tech-2"},
		ActorID:   "mgr-1",
	})
	if err != nil {
		t.Fatalf("team.Create: %v", err)
	}

	a, err := Assign(gdb, task.ID, ForTeam(crew.ID), "mgr-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !a.IsTeam() {
		t.Error("team assignment not reported as team")
	}

	_, err = Assign(gdb, task.ID, ForTeam(crew.ID), "mgr-1")
	if !taskerr.HasReason(err, taskerr.ReasonDuplicateAssignment) {
		t.Errorf("duplicate team assign error = %v, want duplicate_assignment", err)
	}
}

func TestAssign_InactiveTeam(t *testing.T) {
	gdb := testDB(t)
	dir := testDir()
	task := seedTask(t, gdb, "TASK-2026-000001")

	crew, err := team.Create(gdb, dir, team.CreateOpts{Name: "Old crew", ActorID: "mgr-1"})
	if err != nil {
		t.Fatalf("team.Create: %v", err)
	}
	if err := team.SetActive(gdb, crew.ID, false, "mgr-1"); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	_, err = Assign(gdb, task.ID, ForTeam(crew.ID), "mgr-1")
	if taskerr.KindOf(err) != taskerr.KindValidation {
		t.Fatalf("inactive team assign = %v, want validation", err)
	}
}

func TestAssign_BadTarget(t *testing.T) {
	gdb := testDB(t)
	task := seedTask(t, gdb, "TASK-2026-000001")

	if _, err := Assign(gdb, task.ID, Target{}, "mgr-1"); err == nil {
		t.Error("empty target should be rejected")
	}
	if _, err := Assign(gdb, "missing", Individual("tech-1"), "mgr-1"); taskerr.KindOf(err) != taskerr.KindNotFound {
		t.Errorf("missing task = %v, want not found", err)
	}
}

func seedTimeLog(t *testing.T, gdb *gorm.DB, taskID, techID string, arrived, departed bool) {
	t.Helper()
	now := time.Now()
	l := models.TimeLog{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		TechnicianID:    techID,
		TravelStartedAt: &now,
	}
	if arrived {
		l.ArrivedAt = &now
	}
	if departed {
		l.DepartedAt = &now
	} else {
		id := techID
		l.OpenTechnician = &id
	}
	if err := gdb.Create(&l).Error; err != nil {
		t.Fatalf("seed time log: %v", err)
	}
}

func TestSetWorkStatus_EvidenceGates(t *testing.T) {
	gdb := testDB(t)
	task := seedTask(t, gdb, "TASK-2026-000001")
	a, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// No visit yet: in_progress is premature.
	err = SetWorkStatus(gdb, a.ID, models.WorkStatusInProgress, "tech-1")
	if !taskerr.HasReason(err, taskerr.ReasonPrematureStatusChange) {
		t.Fatalf("in_progress without travel = %v, want premature_status_change", err)
	}

	seedTimeLog(t, gdb, task.ID, "tech-1", true, false)
	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusInProgress, "tech-1"); err != nil {
		t.Fatalf("in_progress with travel: %v", err)
	}

	// Open visit: done needs a departure.
	err = SetWorkStatus(gdb, a.ID, models.WorkStatusDone, "tech-1")
	if !taskerr.HasReason(err, taskerr.ReasonVisitIncomplete) {
		t.Fatalf("done without departure = %v, want visit_incomplete", err)
	}

	seedTimeLog(t, gdb, task.ID, "tech-2", true, true) // someone else's visit does not count
	err = SetWorkStatus(gdb, a.ID, models.WorkStatusDone, "tech-1")
	if !taskerr.HasReason(err, taskerr.ReasonVisitIncomplete) {
		t.Fatalf("done with foreign visit = %v, want visit_incomplete", err)
	}

	if err := gdb.Model(&models.TimeLog{}).
		Where("task_id = ? AND technician_id = ?", task.ID, "tech-1").
		Updates(map[string]interface{}{"departed_at": time.Now(), "open_technician": nil}).Error; err != nil {
		t.Fatalf("close visit: %v", err)
	}
	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusDone, "tech-1"); err != nil {
		t.Fatalf("done with departed visit: %v", err)
	}
}

func TestSetWorkStatus_Transitions(t *testing.T) {
	gdb := testDB(t)
	task := seedTask(t, gdb, "TASK-2026-000001")
	a, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	// hold requires no field evidence.
	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusHold, "tech-1"); err != nil {
		t.Fatalf("open → hold: %v", err)
	}

	// open is never a destination.
	err = SetWorkStatus(gdb, a.ID, models.WorkStatusOpen, "tech-1")
	if !taskerr.HasReason(err, taskerr.ReasonInvalidTransition) {
		t.Fatalf("hold → open = %v, want invalid_transition", err)
	}

	if err := SetWorkStatus(gdb, a.ID, "paused", "tech-1"); taskerr.KindOf(err) != taskerr.KindValidation {
		t.Errorf("unknown status = %v, want validation", err)
	}

	// Same-status call is a no-op.
	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusHold, "tech-1"); err != nil {
		t.Errorf("hold → hold: %v", err)
	}
}

func TestSetWorkStatus_DoneIsTerminal(t *testing.T) {
	gdb := testDB(t)
	task := seedTask(t, gdb, "TASK-2026-000001")
	a, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	seedTimeLog(t, gdb, task.ID, "tech-1", true, true)

	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusInProgress, "tech-1"); err != nil {
		t.Fatalf("in_progress: %v", err)
	}
	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusDone, "tech-1"); err != nil {
		t.Fatalf("done: %v", err)
	}

	err = SetWorkStatus(gdb, a.ID, models.WorkStatusInProgress, "tech-1")
	if !taskerr.HasReason(err, taskerr.ReasonInvalidTransition) {
		t.Fatalf("done → in_progress = %v, want invalid_transition", err)
	}
}

func TestSetWorkStatus_TeamExemptFromGates(t *testing.T) {
	gdb := testDB(t)
	dir := testDir()
	task := seedTask(t, gdb, "TASK-2026-000001")

	crew, err := team.Create(gdb, dir, team.CreateOpts{
		Name: "South crew", MemberIDs: []string{"tech-1"}, ActorID: "mgr-1",
	})
	if err != nil {
		t.Fatalf("team.Create: %v", err)
	}
	a, err := Assign(gdb, task.ID, ForTeam(crew.ID), "mgr-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusInProgress, "mgr-1"); err != nil {
		t.Fatalf("team in_progress without evidence: %v", err)
	}
	if err := SetWorkStatus(gdb, a.ID, models.WorkStatusDone, "mgr-1"); err != nil {
		t.Fatalf("team done without evidence: %v", err)
	}
}

func TestResetWorkStatuses(t *testing.T) {
	gdb := testDB(t)
	task := seedTask(t, gdb, "TASK-2026-000001")

	a1, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1")
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := SetWorkStatus(gdb, a1.ID, models.WorkStatusHold, "tech-1"); err != nil {
		t.Fatalf("hold: %v", err)
	}

	if err := ResetWorkStatuses(gdb, task.ID); err != nil {
		t.Fatalf("ResetWorkStatuses: %v", err)
	}
	got, err := Get(gdb, a1.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.WorkStatus != models.WorkStatusOpen {
		t.Errorf("WorkStatus = %q, want open", got.WorkStatus)
	}
}

func TestRecipients(t *testing.T) {
	gdb := testDB(t)
	dir := testDir()
	task := seedTask(t, gdb, "TASK-2026-000001")

	crew, err := team.Create(gdb, dir, team.CreateOpts{
		Name: "West crew", MemberIDs: []string{"tech-1", "tech-2"}, ActorID: "mgr-1",
	})
	if err != nil {
		t.Fatalf("team.Create: %v", err)
	}
	if _, err := Assign(gdb, task.ID, Individual("tech-1"), "mgr-1"); err != nil {
		t.Fatalf("Assign individual: %v", err)
	}
	if _, err := Assign(gdb, task.ID, ForTeam(crew.ID), "mgr-1"); err != nil {
		t.Fatalf("Assign team: %v", err)
	}

	got, err := Recipients(gdb, task.ID)
	if err != nil {
		t.Fatalf("Recipients: %v", err)
	}
	// tech-1 appears both individually and via the team; deduplicated.
	if len(got) != 2 {
		t.Fatalf("Recipients = %v, want 2 unique technicians", got)
	}
}
