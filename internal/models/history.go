package models

import "time"

// TaskHistory is the append-only audit ledger: one row per state transition
// or action, never updated or deleted.
type TaskHistory struct {
	ID      string `gorm:"primaryKey;size:36"`
	TaskID  string `gorm:"size:36;not null;index:idx_history_task_created"`
	ActorID string `gorm:"size:36;index"`
	Action  string `gorm:"size:50;not null;index"`

	FieldName string `gorm:"size:100"`
	OldValue  string `gorm:"type:text"`
	NewValue  string `gorm:"type:text"`
	Details   string `gorm:"type:json"`

	CreatedAt time.Time `gorm:"not null;index:idx_history_task_created;index"`
}

// TaskComment is the human-readable projection written alongside history
// entries. System comments carry an empty AuthorID.
type TaskComment struct {
	ID              string `gorm:"primaryKey;size:36"`
	TaskID          string `gorm:"size:36;not null;index:idx_comment_task_created"`
	AuthorID        string `gorm:"size:36;index"`
	Comment         string `gorm:"type:text;not null"`
	SystemGenerated bool   `gorm:"default:false;index"`

	CreatedAt time.Time `gorm:"index:idx_comment_task_created"`
	UpdatedAt time.Time
}
