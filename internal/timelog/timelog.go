// Package timelog drives the site-presence machine: travel, arrival, lunch
// and departure events for one technician visiting one task's site.
//
// A technician has at most one open visit across all tasks. The application
// enforces this inside the transaction that opens a visit; the unique index
// on time_logs.open_technician backstops the same rule at the storage layer.
package timelog

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/db"
	"github.com/fieldpilot/fieldpilot/internal/history"
	"github.com/fieldpilot/fieldpilot/internal/hours"
	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/taskerr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StartTravel opens a visit: the technician is en route to the task's site.
// It is rejected while the technician has an open visit on any other task.
func StartTravel(gdb *gorm.DB, dir identity.Directory, taskID, technicianID string) (*models.TimeLog, error) {
	t, err := loadTask(gdb, taskID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	l := models.TimeLog{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		TechnicianID:    technicianID,
		OpenTechnician:  &technicianID,
		TravelStartedAt: &now,
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		open, err := openVisit(tx, technicianID)
		if err != nil {
			return err
		}
		if open != nil {
			if open.TaskID != taskID {
				blocking, err := loadTask(tx, open.TaskID)
				if err != nil {
					return err
				}
				return taskerr.Conflict(taskerr.ReasonSiteConflict,
					"%s has an open visit on task %s; depart there first",
					identity.Name(dir, technicianID), blocking.TaskNumber)
			}
			if open.ArrivedAt != nil {
				return taskerr.Conflict(taskerr.ReasonAlreadyTraveling,
					"%s is already on site for task %s", identity.Name(dir, technicianID), t.TaskNumber)
			}
			return taskerr.Conflict(taskerr.ReasonAlreadyTraveling,
				"%s is already traveling to task %s", identity.Name(dir, technicianID), t.TaskNumber)
		}

		if err := tx.Create(&l).Error; err != nil {
			// Race with a concurrent StartTravel: the open_technician unique
			// index rejected the second open visit.
			if db.IsDuplicateKey(err) {
				return taskerr.Conflict(taskerr.ReasonSiteConflict,
					"%s already has an open visit", identity.Name(dir, technicianID))
			}
			return fmt.Errorf("timelog: start travel for task %s: %w", taskID, err)
		}
		return history.Log(tx, taskID, technicianID, history.ActionTravelStarted, history.LogOpts{
			Details: map[string]interface{}{"time": now.Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}

	systemComment(gdb, taskID, "%s started traveling to the site at %s",
		identity.Name(dir, technicianID), now.Format("2006-01-02 15:04"))
	return &l, nil
}

// Arrive marks the technician on site. Requires an open traveling visit on
// this task.
func Arrive(gdb *gorm.DB, dir identity.Directory, taskID, technicianID string) (*models.TimeLog, error) {
	now := time.Now()
	var l *models.TimeLog

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = openVisitOnTask(tx, dir, taskID, technicianID)
		if err != nil {
			return err
		}
		if l.ArrivedAt != nil {
			return taskerr.Conflict(taskerr.ReasonAlreadyArrived,
				"%s has already arrived at the site", identity.Name(dir, technicianID))
		}

		l.ArrivedAt = &now
		if err := tx.Model(l).Update("arrived_at", now).Error; err != nil {
			return fmt.Errorf("timelog: arrive for task %s: %w", taskID, err)
		}
		return history.Log(tx, taskID, technicianID, history.ActionArrived, history.LogOpts{
			Details: map[string]interface{}{"time": now.Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}

	systemComment(gdb, taskID, "%s arrived at the site at %s",
		identity.Name(dir, technicianID), now.Format("2006-01-02 15:04"))
	return l, nil
}

// StartLunch opens the visit's lunch window. One lunch window per visit.
func StartLunch(gdb *gorm.DB, dir identity.Directory, taskID, technicianID string) (*models.TimeLog, error) {
	now := time.Now()
	var l *models.TimeLog

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = openVisitOnTask(tx, dir, taskID, technicianID)
		if err != nil {
			return err
		}
		if l.ArrivedAt == nil {
			return taskerr.Precondition(taskerr.ReasonNotOnSite,
				"%s is not on site", identity.Name(dir, technicianID))
		}
		if l.LunchStartedAt != nil {
			return taskerr.Conflict(taskerr.ReasonLunchAlreadyStarted,
				"lunch was already taken during this visit")
		}

		l.LunchStartedAt = &now
		if err := tx.Model(l).Update("lunch_started_at", now).Error; err != nil {
			return fmt.Errorf("timelog: start lunch for task %s: %w", taskID, err)
		}
		return history.Log(tx, taskID, technicianID, history.ActionLunchStarted, history.LogOpts{
			Details: map[string]interface{}{"time": now.Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

// EndLunch closes the visit's lunch window.
func EndLunch(gdb *gorm.DB, dir identity.Directory, taskID, technicianID string) (*models.TimeLog, error) {
	now := time.Now()
	var l *models.TimeLog

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = openVisitOnTask(tx, dir, taskID, technicianID)
		if err != nil {
			return err
		}
		if !l.IsOnLunch() {
			return taskerr.Precondition(taskerr.ReasonNoLunchInProgress,
				"no lunch in progress for %s", identity.Name(dir, technicianID))
		}

		l.LunchEndedAt = &now
		if err := tx.Model(l).Update("lunch_ended_at", now).Error; err != nil {
			return fmt.Errorf("timelog: end lunch for task %s: %w", taskID, err)
		}
		return history.Log(tx, taskID, technicianID, history.ActionLunchEnded, history.LogOpts{
			Details: map[string]interface{}{"time": now.Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}

	minutes := int(now.Sub(*l.LunchStartedAt) / time.Minute)
	systemComment(gdb, taskID, "%s ended lunch (%d minutes)",
		identity.Name(dir, technicianID), minutes)
	return l, nil
}

// Depart closes the visit: records the equipment status, derives the hour
// breakdown and releases the technician's open-visit slot.
func Depart(gdb *gorm.DB, dir identity.Directory, taskID, technicianID, equipmentStatus string) (*models.TimeLog, error) {
	switch equipmentStatus {
	case models.EquipmentFunctional, models.EquipmentShutdown:
	default:
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput,
			"equipment status must be %q or %q, got %q",
			models.EquipmentFunctional, models.EquipmentShutdown, equipmentStatus)
	}

	now := time.Now()
	var l *models.TimeLog

	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		l, err = openVisitOnTask(tx, dir, taskID, technicianID)
		if err != nil {
			return err
		}
		if l.ArrivedAt == nil {
			return taskerr.Precondition(taskerr.ReasonNotArrived,
				"%s has not arrived at the site", identity.Name(dir, technicianID))
		}
		if l.IsOnLunch() {
			return taskerr.Precondition(taskerr.ReasonOnLunch,
				"end lunch before departing")
		}

		b := hours.Calculate(*l.ArrivedAt, now, l.LunchStartedAt, l.LunchEndedAt)
		l.DepartedAt = &now
		l.OpenTechnician = nil
		l.EquipmentStatusAtDeparture = equipmentStatus
		l.TotalWorkHours = b.Total
		l.NormalHours = b.Normal
		l.OvertimeHours = b.Overtime

		err = tx.Model(&models.TimeLog{}).Where("id = ?", l.ID).
			Updates(map[string]interface{}{
				"departed_at":                   now,
				"open_technician":               nil,
				"equipment_status_at_departure": equipmentStatus,
				"total_work_hours":              b.Total,
				"normal_hours":                  b.Normal,
				"overtime_hours":                b.Overtime,
			}).Error
		if err != nil {
			return fmt.Errorf("timelog: depart for task %s: %w", taskID, err)
		}
		return history.Log(tx, taskID, technicianID, history.ActionDeparted, history.LogOpts{
			Details: map[string]interface{}{
				"time":             now.Format(time.RFC3339),
				"equipment_status": equipmentStatus,
				"total_hours":      b.Total.StringFixed(2),
				"normal_hours":     b.Normal.StringFixed(2),
				"overtime_hours":   b.Overtime.StringFixed(2),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	systemComment(gdb, taskID, "%s departed at %s; equipment %s; %s h worked (%s normal, %s overtime)",
		identity.Name(dir, technicianID), now.Format("2006-01-02 15:04"), equipmentStatus,
		l.TotalWorkHours.StringFixed(2), l.NormalHours.StringFixed(2), l.OvertimeHours.StringFixed(2))
	return l, nil
}

// ActiveForTechnician returns the technician's open visit, or nil.
func ActiveForTechnician(gdb *gorm.DB, technicianID string) (*models.TimeLog, error) {
	return openVisit(gdb, technicianID)
}

// ListForTask returns a task's visits in creation order.
func ListForTask(gdb *gorm.DB, taskID string) ([]models.TimeLog, error) {
	var logs []models.TimeLog
	if err := gdb.Where("task_id = ?", taskID).
		Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("timelog: list for task %s: %w", taskID, err)
	}
	return logs, nil
}

// OnSiteTechnicians returns the IDs of technicians with an open visit on the
// task. Consulted by the task close gate.
func OnSiteTechnicians(gdb *gorm.DB, taskID string) ([]string, error) {
	var ids []string
	err := gdb.Model(&models.TimeLog{}).
		Where("task_id = ? AND departed_at IS NULL", taskID).
		Pluck("technician_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("timelog: on-site technicians for task %s: %w", taskID, err)
	}
	return ids, nil
}

func openVisit(gdb *gorm.DB, technicianID string) (*models.TimeLog, error) {
	var l models.TimeLog
	err := gdb.Where("open_technician = ?", technicianID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("timelog: open visit for %s: %w", technicianID, err)
	}
	return &l, nil
}

// openVisitOnTask resolves the technician's open visit and requires it to be
// on the given task. The not-found error distinguishes a finished visit from
// one that never started.
func openVisitOnTask(gdb *gorm.DB, dir identity.Directory, taskID, technicianID string) (*models.TimeLog, error) {
	l, err := openVisit(gdb, technicianID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		var last models.TimeLog
		err := gdb.Where("task_id = ? AND technician_id = ?", taskID, technicianID).
			Order("created_at DESC").First(&last).Error
		if err == nil && last.DepartedAt != nil {
			return nil, taskerr.Conflict(taskerr.ReasonAlreadyDeparted,
				"%s already departed from this site", identity.Name(dir, technicianID))
		}
		return nil, taskerr.Precondition(taskerr.ReasonNotTraveling,
			"%s has no visit in progress on this task", identity.Name(dir, technicianID))
	}
	if l.TaskID != taskID {
		blocking, err := loadTask(gdb, l.TaskID)
		if err != nil {
			return nil, err
		}
		return nil, taskerr.Conflict(taskerr.ReasonSiteConflict,
			"%s has an open visit on task %s", identity.Name(dir, technicianID), blocking.TaskNumber)
	}
	return l, nil
}

func loadTask(gdb *gorm.DB, taskID string) (*models.Task, error) {
	var t models.Task
	if err := gdb.Where("id = ?", taskID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskerr.NotFound("task %s not found", taskID)
		}
		return nil, fmt.Errorf("timelog: load task %s: %w", taskID, err)
	}
	return &t, nil
}

// systemComment projects a presence event into the task's comment feed.
// Best-effort: the ledger entry written in the transaction is authoritative.
func systemComment(gdb *gorm.DB, taskID, format string, args ...interface{}) {
	if err := history.SystemComment(gdb, taskID, fmt.Sprintf(format, args...)); err != nil {
		log.Printf("timelog: system comment for task %s: %v", taskID, err)
	}
}
