// Package scheduler activates scheduled tasks when their start time arrives.
package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/assignment"
	"github.com/fieldpilot/fieldpilot/internal/history"
	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/notify"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// ActivateDue moves scheduled tasks whose start time has passed from new to
// pending and clears their scheduled flag, one transaction per task so a
// single failure does not hold back the rest. Returns the number of tasks
// activated.
func ActivateDue(gdb *gorm.DB, notifiers []notify.Notifier, now time.Time) (int, error) {
	var due []models.Task
	err := gdb.Where("is_scheduled = ? AND status = ? AND scheduled_start <= ?",
		true, models.TaskStatusNew, now).Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("scheduler: find due tasks: %w", err)
	}

	activated := 0
	for _, t := range due {
		err := gdb.Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&models.Task{}).
				Where("id = ? AND status = ?", t.ID, models.TaskStatusNew).
				Updates(map[string]interface{}{
					"status":       models.TaskStatusPending,
					"is_scheduled": false,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				// Raced by an operator; nothing to do.
				return nil
			}
			activated++
			return history.Log(tx, t.ID, "", history.ActionStatusChanged, history.LogOpts{
				Field:    "status",
				OldValue: models.TaskStatusNew,
				NewValue: models.TaskStatusPending,
				Details:  map[string]interface{}{"scheduled_start": t.ScheduledStart.Format(time.RFC3339)},
			})
		})
		if err != nil {
			log.Printf("scheduler: activate %s: %v", t.TaskNumber, err)
			continue
		}

		recipients, err := assignment.Recipients(gdb, t.ID)
		if err != nil {
			recipients = nil
		}
		notify.Dispatch(notifiers, notify.ScheduledActivated(
			t.TaskNumber, t.Title, t.Priority == models.PriorityCritical, recipients))
	}
	return activated, nil
}

// Runner drives ActivateDue on a cron schedule.
type Runner struct {
	cron *cron.Cron
}

// NewRunner builds a runner for the given 5-field cron expression.
func NewRunner(spec string, gdb *gorm.DB, notifiers []notify.Notifier) (*Runner, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := ActivateDue(gdb, notifiers, time.Now())
		if err != nil {
			log.Printf("scheduler: %v", err)
			return
		}
		if n > 0 {
			log.Printf("scheduler: activated %d scheduled task(s)", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: cron spec %q: %w", spec, err)
	}
	return &Runner{cron: c}, nil
}

// Start launches the cron loop in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts the loop and waits for a running activation to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
