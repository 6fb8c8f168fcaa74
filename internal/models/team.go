package models

import (
	"time"

	"gorm.io/gorm"
)

// TechnicianTeam groups technicians for group task assignments.
type TechnicianTeam struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"size:255;not null;uniqueIndex"`
	Description string `gorm:"type:text"`
	Active      bool   `gorm:"default:true;index"`

	CreatedBy string `gorm:"size:36"`
	UpdatedBy string `gorm:"size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Members []TeamMember `gorm:"foreignKey:TeamID"`
}

// TeamMember links one technician identity to a team. Membership is validated
// against the identity directory at addition time, not re-checked afterward.
type TeamMember struct {
	TeamID       string `gorm:"primaryKey;size:36"`
	TechnicianID string `gorm:"primaryKey;size:36;index"`
	AddedBy      string `gorm:"size:36"`
	AddedAt      time.Time
}
