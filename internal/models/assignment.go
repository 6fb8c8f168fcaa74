package models

import "time"

// Work statuses (per assignment, updated by the technician).
const (
	WorkStatusOpen       = "open"
	WorkStatusHold       = "hold"
	WorkStatusInProgress = "in_progress"
	WorkStatusDone       = "done"
)

// TaskAssignment binds a task to exactly one technician or one team.
// Exactly one of AssigneeID / TeamID is set; the unique indexes reject
// duplicate (task, target) rows at the storage layer.
type TaskAssignment struct {
	ID         string  `gorm:"primaryKey;size:36"`
	TaskID     string  `gorm:"size:36;not null;index:idx_assign_task_assignee,unique;index:idx_assign_task_team,unique"`
	AssigneeID *string `gorm:"size:36;index:idx_assign_task_assignee,unique;index"`
	TeamID     *string `gorm:"size:36;index:idx_assign_task_team,unique"`

	WorkStatus string `gorm:"size:20;default:open;index"`

	AssignedBy string    `gorm:"size:36"`
	AssignedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt  time.Time
}

// IsTeam reports whether this assignment targets a team rather than an
// individual technician.
func (a *TaskAssignment) IsTeam() bool {
	return a.TeamID != nil
}
