// Package task implements the work-order lifecycle: creation with generated
// task numbers, the administrative status machine, material logging and
// soft deletion.
package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/assignment"
	"github.com/fieldpilot/fieldpilot/internal/history"
	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/notify"
	"github.com/fieldpilot/fieldpilot/internal/sequence"
	"github.com/fieldpilot/fieldpilot/internal/taskerr"
	"github.com/fieldpilot/fieldpilot/internal/timelog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EquipmentLookup answers whether an equipment ID is known to the tenant.
// Equipment lives outside the task core; the lookup is the whole contract.
type EquipmentLookup interface {
	Exists(id string) bool
}

// EquipmentSet is a fixed in-memory EquipmentLookup.
type EquipmentSet map[string]bool

func (s EquipmentSet) Exists(id string) bool { return s[id] }

// ValidStatusTransitions defines the administrative status machine.
// Rejected is terminal; closed can only be reopened or rejected.
var ValidStatusTransitions = map[string][]string{
	models.TaskStatusNew:      {models.TaskStatusPending, models.TaskStatusClosed, models.TaskStatusRejected},
	models.TaskStatusPending:  {models.TaskStatusClosed, models.TaskStatusRejected},
	models.TaskStatusReopened: {models.TaskStatusPending, models.TaskStatusClosed, models.TaskStatusRejected},
	models.TaskStatusClosed:   {models.TaskStatusReopened, models.TaskStatusRejected},
	models.TaskStatusRejected: {},
}

func statusTransitionAllowed(from, to string) bool {
	for _, allowed := range ValidStatusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func knownStatus(s string) bool {
	switch s {
	case models.TaskStatusNew, models.TaskStatusPending, models.TaskStatusClosed,
		models.TaskStatusReopened, models.TaskStatusRejected:
		return true
	}
	return false
}

func knownPriority(p string) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
		return true
	}
	return false
}

// CreateOpts holds parameters for creating a task.
type CreateOpts struct {
	EquipmentID    string
	Title          string
	Description    string
	Priority       string
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	CustomFields   map[string]interface{}
	ActorID        string
}

// Create issues a task number and stores the task. Critical tasks fan out an
// immediate alert to the configured sinks.
func Create(gdb *gorm.DB, equip EquipmentLookup, notifiers []notify.Notifier, opts CreateOpts) (*models.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "task title is required")
	}
	if opts.EquipmentID == "" {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "equipment id is required")
	}
	if equip != nil && !equip.Exists(opts.EquipmentID) {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "unknown equipment %q", opts.EquipmentID)
	}
	if opts.Priority == "" {
		opts.Priority = models.PriorityMedium
	}
	if !knownPriority(opts.Priority) {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "unknown priority %q", opts.Priority)
	}
	if opts.ScheduledStart != nil && opts.ScheduledEnd != nil &&
		!opts.ScheduledEnd.After(*opts.ScheduledStart) {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "scheduled end must be after scheduled start")
	}

	custom := "{}"
	if len(opts.CustomFields) > 0 {
		data, err := json.Marshal(opts.CustomFields)
		if err != nil {
			return nil, fmt.Errorf("task: marshal custom fields: %w", err)
		}
		custom = string(data)
	}

	// The counter advances in its own transaction; a failure below leaves a
	// gap in the numbering, never a duplicate.
	number, err := sequence.Next(gdb)
	if err != nil {
		return nil, err
	}

	t := models.Task{
		ID:             uuid.NewString(),
		TaskNumber:     number,
		EquipmentID:    opts.EquipmentID,
		Title:          opts.Title,
		Description:    opts.Description,
		Status:         models.TaskStatusNew,
		Priority:       opts.Priority,
		ScheduledStart: opts.ScheduledStart,
		ScheduledEnd:   opts.ScheduledEnd,
		IsScheduled:    opts.ScheduledStart != nil,
		CustomFields:   custom,
		CreatedBy:      opts.ActorID,
		UpdatedBy:      opts.ActorID,
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return fmt.Errorf("task: create %s: %w", number, err)
		}
		return history.Log(tx, t.ID, opts.ActorID, history.ActionCreated, history.LogOpts{
			NewValue: number,
		})
	})
	if err != nil {
		return nil, err
	}

	if t.Priority == models.PriorityCritical {
		notify.Dispatch(notifiers, notify.CriticalTask(t.TaskNumber, t.Title, nil))
	}
	return &t, nil
}

// Get retrieves a task by ID.
func Get(gdb *gorm.DB, id string) (*models.Task, error) {
	var t models.Task
	if err := gdb.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskerr.NotFound("task %s not found", id)
		}
		return nil, fmt.Errorf("task: get %s: %w", id, err)
	}
	return &t, nil
}

// GetByNumber retrieves a task by its task number.
func GetByNumber(gdb *gorm.DB, number string) (*models.Task, error) {
	var t models.Task
	if err := gdb.Where("task_number = ?", number).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskerr.NotFound("task %s not found", number)
		}
		return nil, fmt.Errorf("task: get %s: %w", number, err)
	}
	return &t, nil
}

// ListFilters narrows a task listing.
type ListFilters struct {
	Status      string
	Priority    string
	EquipmentID string
	Scheduled   *bool
}

// List returns tasks matching the filters, newest first.
func List(gdb *gorm.DB, filters ListFilters) ([]models.Task, error) {
	q := gdb.Model(&models.Task{})
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Priority != "" {
		q = q.Where("priority = ?", filters.Priority)
	}
	if filters.EquipmentID != "" {
		q = q.Where("equipment_id = ?", filters.EquipmentID)
	}
	if filters.Scheduled != nil {
		q = q.Where("is_scheduled = ?", *filters.Scheduled)
	}

	var tasks []models.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// UpdateOpts holds optional field changes. Nil fields are untouched.
type UpdateOpts struct {
	Title       *string
	Description *string
	Notes       *string
	Priority    *string
	ActorID     string
}

// Update applies field changes and records them in the ledger. Priority
// changes get their own ledger action; other fields share a generic entry.
func Update(gdb *gorm.DB, taskID string, opts UpdateOpts) (*models.Task, error) {
	t, err := Get(gdb, taskID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if opts.Title != nil && *opts.Title != t.Title {
		if strings.TrimSpace(*opts.Title) == "" {
			return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "task title is required")
		}
		changes["title"] = *opts.Title
	}
	if opts.Description != nil && *opts.Description != t.Description {
		changes["description"] = *opts.Description
	}
	if opts.Notes != nil && *opts.Notes != t.Notes {
		changes["notes"] = *opts.Notes
	}
	var priorityChange *string
	if opts.Priority != nil && *opts.Priority != t.Priority {
		if !knownPriority(*opts.Priority) {
			return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "unknown priority %q", *opts.Priority)
		}
		changes["priority"] = *opts.Priority
		priorityChange = opts.Priority
	}
	if len(changes) == 0 {
		return t, nil
	}
	changes["updated_by"] = opts.ActorID

	err = gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).Where("id = ?", taskID).
			Updates(changes).Error; err != nil {
			return fmt.Errorf("task: update %s: %w", taskID, err)
		}
		if priorityChange != nil {
			if err := history.Log(tx, taskID, opts.ActorID, history.ActionPriorityChanged, history.LogOpts{
				Field: "priority", OldValue: t.Priority, NewValue: *priorityChange,
			}); err != nil {
				return err
			}
		}
		for field := range changes {
			if field == "priority" || field == "updated_by" {
				continue
			}
			if err := history.Log(tx, taskID, opts.ActorID, history.ActionUpdated, history.LogOpts{
				Field: field,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(gdb, taskID)
}

// SetStatus moves a task through the administrative status machine.
//
// Closing requires the site to be clear: any technician with an open visit
// blocks the close by name. Reopening clears the completion marker and
// returns every assignment's work status to open in the same transaction.
func SetStatus(gdb *gorm.DB, dir identity.Directory, notifiers []notify.Notifier, taskID, newStatus, actorID string) (*models.Task, error) {
	if !knownStatus(newStatus) {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "unknown status %q", newStatus)
	}

	t, err := Get(gdb, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status == newStatus {
		return t, nil
	}
	if !statusTransitionAllowed(t.Status, newStatus) {
		return nil, taskerr.Validation(taskerr.ReasonInvalidTransition,
			"task %s cannot change from %s to %s", t.TaskNumber, t.Status, newStatus)
	}

	now := time.Now()
	err = gdb.Transaction(func(tx *gorm.DB) error {
		// The site-clear check shares the transaction with the status write
		// so a visit opened in between cannot slip past the gate.
		if newStatus == models.TaskStatusClosed {
			onSite, err := timelog.OnSiteTechnicians(tx, taskID)
			if err != nil {
				return err
			}
			if len(onSite) > 0 {
				names := make([]string, len(onSite))
				for i, id := range onSite {
					names[i] = identity.Name(dir, id)
				}
				return taskerr.Precondition(taskerr.ReasonTechniciansOnSite,
					"task %s cannot close while on site: %s", t.TaskNumber, strings.Join(names, ", "))
			}
		}

		changes := map[string]interface{}{
			"status":     newStatus,
			"updated_by": actorID,
		}
		switch newStatus {
		case models.TaskStatusClosed:
			changes["completed_at"] = now
		case models.TaskStatusReopened:
			changes["completed_at"] = nil
		}

		result := tx.Model(&models.Task{}).
			Where("id = ? AND status = ?", taskID, t.Status).
			Updates(changes)
		if result.Error != nil {
			return fmt.Errorf("task: set status %s: %w", taskID, result.Error)
		}
		if result.RowsAffected == 0 {
			return taskerr.Conflict(taskerr.ReasonInvalidTransition,
				"task %s changed concurrently", t.TaskNumber)
		}

		if newStatus == models.TaskStatusReopened {
			if err := assignment.ResetWorkStatuses(tx, taskID); err != nil {
				return err
			}
		}
		return history.Log(tx, taskID, actorID, history.ActionStatusChanged, history.LogOpts{
			Field: "status", OldValue: t.Status, NewValue: newStatus,
		})
	})
	if err != nil {
		return nil, err
	}

	recipients, err := assignment.Recipients(gdb, taskID)
	if err == nil {
		notify.Dispatch(notifiers, notify.StatusChanged(t.TaskNumber, t.Status, newStatus, recipients))
	}
	return Get(gdb, taskID)
}

// SoftDelete hides a task from listings while keeping its history.
func SoftDelete(gdb *gorm.DB, taskID, actorID string) error {
	t, err := Get(gdb, taskID)
	if err != nil {
		return err
	}
	if err := gdb.Delete(&models.Task{}, "id = ?", t.ID).Error; err != nil {
		return fmt.Errorf("task: delete %s: %w", t.TaskNumber, err)
	}
	return nil
}

// MaterialOpts holds parameters for a material log entry.
type MaterialOpts struct {
	LogType      string // needed or received
	MaterialName string
	Quantity     decimal.Decimal
	Unit         string
	Notes        string
	ActorID      string
}

// LogMaterial records a material as needed or received and mirrors the event
// into the ledger.
func LogMaterial(gdb *gorm.DB, taskID string, opts MaterialOpts) (*models.MaterialLog, error) {
	if opts.MaterialName == "" {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "material name is required")
	}
	var action string
	switch opts.LogType {
	case models.MaterialNeeded:
		action = history.ActionMaterialNeeded
	case models.MaterialReceived:
		action = history.ActionMaterialReceived
	default:
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput,
			"material log type must be %q or %q", models.MaterialNeeded, models.MaterialReceived)
	}
	if _, err := Get(gdb, taskID); err != nil {
		return nil, err
	}

	m := models.MaterialLog{
		ID:           uuid.NewString(),
		TaskID:       taskID,
		LoggedBy:     opts.ActorID,
		LogType:      opts.LogType,
		MaterialName: opts.MaterialName,
		Quantity:     opts.Quantity,
		Unit:         opts.Unit,
		Notes:        opts.Notes,
	}
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			return fmt.Errorf("task: log material for %s: %w", taskID, err)
		}
		return history.Log(tx, taskID, opts.ActorID, action, history.LogOpts{
			NewValue: opts.MaterialName,
			Details: map[string]interface{}{
				"quantity": opts.Quantity.String(),
				"unit":     opts.Unit,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Materials returns a task's material log, optionally filtered by type.
func Materials(gdb *gorm.DB, taskID, logType string) ([]models.MaterialLog, error) {
	q := gdb.Where("task_id = ?", taskID)
	if logType != "" {
		q = q.Where("log_type = ?", logType)
	}
	var logs []models.MaterialLog
	if err := q.Order("logged_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("task: materials for %s: %w", taskID, err)
	}
	return logs, nil
}
