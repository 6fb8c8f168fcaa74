// Package assignment binds tasks to technicians or teams and tracks the
// per-assignment work status reported from the field.
package assignment

import (
	"errors"
	"fmt"

	"github.com/fieldpilot/fieldpilot/internal/db"
	"github.com/fieldpilot/fieldpilot/internal/history"
	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/taskerr"
	"github.com/fieldpilot/fieldpilot/internal/team"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Target is the recipient of an assignment: exactly one technician or one
// team.
type Target struct {
	assigneeID string
	teamID     string
}

// Individual targets a single technician.
func Individual(technicianID string) Target {
	return Target{assigneeID: technicianID}
}

// ForTeam targets a technician team.
func ForTeam(teamID string) Target {
	return Target{teamID: teamID}
}

// IsTeam reports whether the target is a team.
func (t Target) IsTeam() bool { return t.teamID != "" }

// AssigneeID returns the technician ID for individual targets.
func (t Target) AssigneeID() string { return t.assigneeID }

// TeamID returns the team ID for team targets.
func (t Target) TeamID() string { return t.teamID }

func (t Target) validate() error {
	if t.assigneeID == "" && t.teamID == "" {
		return taskerr.Validation(taskerr.ReasonInvalidInput, "assignment target is required")
	}
	if t.assigneeID != "" && t.teamID != "" {
		return taskerr.Validation(taskerr.ReasonInvalidInput, "assignment target must be a technician or a team, not both")
	}
	return nil
}

// ValidWorkTransitions defines the permitted work-status moves. Done is
// terminal.
var ValidWorkTransitions = map[string][]string{
	models.WorkStatusOpen:       {models.WorkStatusHold, models.WorkStatusInProgress},
	models.WorkStatusHold:       {models.WorkStatusInProgress, models.WorkStatusDone},
	models.WorkStatusInProgress: {models.WorkStatusHold, models.WorkStatusDone},
	models.WorkStatusDone:       {},
}

func workTransitionAllowed(from, to string) bool {
	for _, allowed := range ValidWorkTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Assign creates one assignment of a task to a target. A task may carry
// several assignments, but each (task, target) pair exists at most once.
func Assign(gdb *gorm.DB, taskID string, target Target, actorID string) (*models.TaskAssignment, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}

	var t models.Task
	if err := gdb.Where("id = ?", taskID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskerr.NotFound("task %s not found", taskID)
		}
		return nil, fmt.Errorf("assignment: load task %s: %w", taskID, err)
	}

	a := models.TaskAssignment{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		WorkStatus: models.WorkStatusOpen,
		AssignedBy: actorID,
	}
	var targetLabel string
	if target.IsTeam() {
		crew, err := team.Get(gdb, target.TeamID())
		if err != nil {
			return nil, err
		}
		if !crew.Active {
			return nil, taskerr.Validation(taskerr.ReasonInvalidInput,
				"team %s is inactive and cannot receive assignments", crew.Name)
		}
		id := crew.ID
		a.TeamID = &id
		targetLabel = "team " + crew.Name
	} else {
		id := target.AssigneeID()
		a.AssigneeID = &id
		targetLabel = "technician " + id
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&a).Error; err != nil {
			if db.IsDuplicateKey(err) {
				return taskerr.Conflict(taskerr.ReasonDuplicateAssignment,
					"task %s is already assigned to %s", t.TaskNumber, targetLabel)
			}
			return fmt.Errorf("assignment: create for task %s: %w", taskID, err)
		}
		return history.Log(tx, taskID, actorID, history.ActionAssigned, history.LogOpts{
			NewValue: targetLabel,
		})
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Get retrieves an assignment by ID.
func Get(gdb *gorm.DB, id string) (*models.TaskAssignment, error) {
	var a models.TaskAssignment
	if err := gdb.Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskerr.NotFound("assignment %s not found", id)
		}
		return nil, fmt.Errorf("assignment: get %s: %w", id, err)
	}
	return &a, nil
}

// ListForTask returns a task's assignments in assignment order.
func ListForTask(gdb *gorm.DB, taskID string) ([]models.TaskAssignment, error) {
	var assignments []models.TaskAssignment
	if err := gdb.Where("task_id = ?", taskID).
		Order("assigned_at ASC").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("assignment: list for task %s: %w", taskID, err)
	}
	return assignments, nil
}

// ListForTechnician returns a technician's individual assignments.
func ListForTechnician(gdb *gorm.DB, technicianID string) ([]models.TaskAssignment, error) {
	var assignments []models.TaskAssignment
	if err := gdb.Where("assignee_id = ?", technicianID).
		Order("assigned_at ASC").Find(&assignments).Error; err != nil {
		return nil, fmt.Errorf("assignment: list for technician %s: %w", technicianID, err)
	}
	return assignments, nil
}

// SetWorkStatus moves an assignment's work status, enforcing both the
// transition map and the field-evidence gates: an individual assignment
// cannot enter in_progress before its technician has at least started
// travel, and cannot reach done before a completed (departed) visit exists.
// Team assignments are exempt from the evidence gates because the visit
// records belong to individual technicians.
func SetWorkStatus(gdb *gorm.DB, assignmentID, newStatus, actorID string) error {
	switch newStatus {
	case models.WorkStatusOpen, models.WorkStatusHold, models.WorkStatusInProgress, models.WorkStatusDone:
	default:
		return taskerr.Validation(taskerr.ReasonInvalidInput, "unknown work status %q", newStatus)
	}

	a, err := Get(gdb, assignmentID)
	if err != nil {
		return err
	}
	if a.WorkStatus == newStatus {
		return nil
	}
	if !workTransitionAllowed(a.WorkStatus, newStatus) {
		return taskerr.Validation(taskerr.ReasonInvalidTransition,
			"work status cannot change from %s to %s", a.WorkStatus, newStatus)
	}

	if !a.IsTeam() {
		switch newStatus {
		case models.WorkStatusInProgress:
			if err := requireTravelEvidence(gdb, a); err != nil {
				return err
			}
		case models.WorkStatusDone:
			if err := requireCompletedVisit(gdb, a); err != nil {
				return err
			}
		}
	}

	return gdb.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.TaskAssignment{}).
			Where("id = ? AND work_status = ?", assignmentID, a.WorkStatus).
			Update("work_status", newStatus)
		if result.Error != nil {
			return fmt.Errorf("assignment: set work status %s: %w", assignmentID, result.Error)
		}
		if result.RowsAffected == 0 {
			return taskerr.Conflict(taskerr.ReasonInvalidTransition,
				"assignment %s changed concurrently", assignmentID)
		}
		return history.Log(tx, a.TaskID, actorID, history.ActionWorkStatusChanged, history.LogOpts{
			Field:    "work_status",
			OldValue: a.WorkStatus,
			NewValue: newStatus,
		})
	})
}

// requireTravelEvidence demands at least a started visit (travel or arrival)
// by the assignee on the task.
func requireTravelEvidence(gdb *gorm.DB, a *models.TaskAssignment) error {
	var count int64
	err := gdb.Model(&models.TimeLog{}).
		Where("task_id = ? AND technician_id = ? AND travel_started_at IS NOT NULL", a.TaskID, *a.AssigneeID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("assignment: check travel evidence: %w", err)
	}
	if count == 0 {
		return taskerr.Precondition(taskerr.ReasonPrematureStatusChange,
			"work cannot start before travel or arrival is recorded")
	}
	return nil
}

// requireCompletedVisit demands a departed visit by the assignee on the task.
func requireCompletedVisit(gdb *gorm.DB, a *models.TaskAssignment) error {
	var count int64
	err := gdb.Model(&models.TimeLog{}).
		Where("task_id = ? AND technician_id = ? AND departed_at IS NOT NULL", a.TaskID, *a.AssigneeID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("assignment: check completed visit: %w", err)
	}
	if count == 0 {
		return taskerr.Precondition(taskerr.ReasonVisitIncomplete,
			"work cannot be marked done before a completed site visit is recorded")
	}
	return nil
}

// ResetWorkStatuses returns every assignment of a task to open. Used when a
// closed task is reopened; runs on the caller's transaction handle.
func ResetWorkStatuses(tx *gorm.DB, taskID string) error {
	err := tx.Model(&models.TaskAssignment{}).
		Where("task_id = ?", taskID).
		Update("work_status", models.WorkStatusOpen).Error
	if err != nil {
		return fmt.Errorf("assignment: reset work statuses for task %s: %w", taskID, err)
	}
	return nil
}

// Recipients expands a task's assignments into the technician IDs that
// should receive notifications, flattening teams into their members.
func Recipients(gdb *gorm.DB, taskID string) ([]string, error) {
	assignments, err := ListForTask(gdb, taskID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var recipients []string
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			recipients = append(recipients, id)
		}
	}

	for _, a := range assignments {
		if a.AssigneeID != nil {
			add(*a.AssigneeID)
			continue
		}
		members, err := team.MemberIDs(gdb, *a.TeamID)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			add(m)
		}
	}
	return recipients, nil
}
