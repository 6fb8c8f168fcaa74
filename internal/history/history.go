// Package history maintains the append-only audit ledger for tasks.
// Entries are written in the same transaction as the mutation they record
// and are never updated or deleted.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actions recorded in the ledger.
const (
	ActionCreated           = "created"
	ActionUpdated           = "updated"
	ActionStatusChanged     = "status_changed"
	ActionPriorityChanged   = "priority_changed"
	ActionAssigned          = "assigned"
	ActionWorkStatusChanged = "work_status_changed"
	ActionCommentAdded      = "comment_added"
	ActionTravelStarted     = "travel_started"
	ActionArrived           = "arrived"
	ActionDeparted          = "departed"
	ActionLunchStarted      = "lunch_started"
	ActionLunchEnded        = "lunch_ended"
	ActionMaterialNeeded    = "material_needed"
	ActionMaterialReceived  = "material_received"
)

// LogOpts holds optional fields for a history entry.
type LogOpts struct {
	Field    string
	OldValue string
	NewValue string
	Details  map[string]interface{}
}

// Log appends one entry to the ledger. Callers pass their transaction handle
// so the entry commits or rolls back with the mutation it records.
func Log(db *gorm.DB, taskID, actorID, action string, opts LogOpts) error {
	details := "{}"
	if len(opts.Details) > 0 {
		data, err := json.Marshal(opts.Details)
		if err != nil {
			return fmt.Errorf("history: marshal details: %w", err)
		}
		details = string(data)
	}

	entry := models.TaskHistory{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		ActorID:   actorID,
		Action:    action,
		FieldName: opts.Field,
		OldValue:  opts.OldValue,
		NewValue:  opts.NewValue,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("history: log %s for task %s: %w", action, taskID, err)
	}
	return nil
}

// Filters narrows a history query.
type Filters struct {
	Action  string
	ActorID string
}

// List returns a task's ledger entries in chronological order.
func List(db *gorm.DB, taskID string, filters Filters) ([]models.TaskHistory, error) {
	q := db.Where("task_id = ?", taskID)
	if filters.Action != "" {
		q = q.Where("action = ?", filters.Action)
	}
	if filters.ActorID != "" {
		q = q.Where("actor_id = ?", filters.ActorID)
	}

	var entries []models.TaskHistory
	if err := q.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("history: list for task %s: %w", taskID, err)
	}
	return entries, nil
}

// SystemComment appends a system-generated comment to the task's ops-facing
// log. This is a convenience projection of the ledger, not a second source
// of truth; callers treat failures as best-effort.
func SystemComment(db *gorm.DB, taskID, text string) error {
	c := models.TaskComment{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		Comment:         text,
		SystemGenerated: true,
		CreatedAt:       time.Now(),
	}
	if err := db.Create(&c).Error; err != nil {
		return fmt.Errorf("history: system comment for task %s: %w", taskID, err)
	}
	return nil
}

// AddComment appends a user comment and its ledger entry.
func AddComment(db *gorm.DB, taskID, authorID, text string) (*models.TaskComment, error) {
	if text == "" {
		return nil, fmt.Errorf("history: comment text is required")
	}

	c := models.TaskComment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		AuthorID:  authorID,
		Comment:   text,
		CreatedAt: time.Now(),
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return fmt.Errorf("history: add comment for task %s: %w", taskID, err)
		}
		return Log(tx, taskID, authorID, ActionCommentAdded, LogOpts{})
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Comments returns a task's comments in chronological order.
func Comments(db *gorm.DB, taskID string) ([]models.TaskComment, error) {
	var comments []models.TaskComment
	if err := db.Where("task_id = ?", taskID).
		Order("created_at ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("history: comments for task %s: %w", taskID, err)
	}
	return comments, nil
}
