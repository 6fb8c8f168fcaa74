package models

import (
	"time"

	"gorm.io/gorm"
)

// Task statuses (administrative, set by admins and managers).
const (
	TaskStatusNew      = "new"
	TaskStatusPending  = "pending"
	TaskStatusClosed   = "closed"
	TaskStatusReopened = "reopened"
	TaskStatusRejected = "rejected"
)

// Task priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Task is the core work order: maintenance to perform on a piece of equipment.
type Task struct {
	ID          string `gorm:"primaryKey;size:36"`
	TaskNumber  string `gorm:"size:50;not null;uniqueIndex"`
	EquipmentID string `gorm:"size:36;not null;index"`
	Title       string `gorm:"size:255;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:20;default:new;index:idx_tasks_status_priority"`
	Priority    string `gorm:"size:20;default:medium;index:idx_tasks_status_priority"`

	ScheduledStart *time.Time `gorm:"index"`
	ScheduledEnd   *time.Time
	IsScheduled    bool `gorm:"default:false;index"`

	MaterialsNeeded   string `gorm:"type:json"`
	MaterialsReceived string `gorm:"type:json"`
	Notes             string `gorm:"type:text"`
	CustomFields      string `gorm:"type:json"`

	CreatedBy   string         `gorm:"size:36"`
	UpdatedBy   string         `gorm:"size:36"`
	CreatedAt   time.Time      `gorm:"index"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index"`

	Assignments []TaskAssignment `gorm:"foreignKey:TaskID"`
	TimeLogs    []TimeLog        `gorm:"foreignKey:TaskID"`
	History     []TaskHistory    `gorm:"foreignKey:TaskID"`
}

// TaskNumberSequence is the per-tenant counter behind task number generation.
// A single row, mutated only under a row-level lock.
type TaskNumberSequence struct {
	ID         string `gorm:"primaryKey;size:36"`
	LastNumber int    `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName keeps the historical singular-odd table name.
func (TaskNumberSequence) TableName() string {
	return "task_number_sequence"
}
