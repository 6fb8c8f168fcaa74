package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Equipment status reported by the technician at departure.
const (
	EquipmentFunctional = "functional"
	EquipmentShutdown   = "shutdown"
)

// TimeLog records one site visit by one technician on one task:
// travel, arrival, optional lunch window, departure. A log is open while
// DepartedAt is null and closed once it is set.
//
// OpenTechnician mirrors TechnicianID while the log is open and is cleared
// at departure. Its unique index is the storage-level backstop for the
// one-open-visit-per-technician invariant: two open logs for the same
// technician cannot coexist even if the application check is raced.
type TimeLog struct {
	ID           string `gorm:"primaryKey;size:36"`
	TaskID       string `gorm:"size:36;not null;index;index:idx_timelog_task_tech"`
	TechnicianID string `gorm:"size:36;not null;index;index:idx_timelog_task_tech"`

	OpenTechnician *string `gorm:"size:36;uniqueIndex"`

	TravelStartedAt *time.Time `gorm:"index"`
	ArrivedAt       *time.Time
	DepartedAt      *time.Time `gorm:"index"`
	LunchStartedAt  *time.Time
	LunchEndedAt    *time.Time

	EquipmentStatusAtDeparture string `gorm:"size:20"`

	TotalWorkHours decimal.Decimal `gorm:"type:decimal(8,2);default:0"`
	NormalHours    decimal.Decimal `gorm:"type:decimal(8,2);default:0"`
	OvertimeHours  decimal.Decimal `gorm:"type:decimal(8,2);default:0"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// IsOpen reports whether the visit is still in progress (not departed).
func (l *TimeLog) IsOpen() bool {
	return l.DepartedAt == nil
}

// IsTraveling reports whether the technician is en route to the site.
func (l *TimeLog) IsTraveling() bool {
	return l.TravelStartedAt != nil && l.ArrivedAt == nil
}

// IsOnSite reports whether the technician is at the site and has not departed.
func (l *TimeLog) IsOnSite() bool {
	return l.ArrivedAt != nil && l.DepartedAt == nil
}

// IsOnLunch reports whether a lunch window is open.
func (l *TimeLog) IsOnLunch() bool {
	return l.LunchStartedAt != nil && l.LunchEndedAt == nil
}
