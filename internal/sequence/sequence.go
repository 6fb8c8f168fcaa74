// Package sequence issues unique, monotonic task numbers.
package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/taskerr"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Next increments the tenant's counter and returns the formatted task number,
// e.g. "TASK-2026-000001". The read-increment-write runs inside one
// transaction with a row-level lock (SELECT ... FOR UPDATE), so concurrent
// callers block rather than observe the same value. Numbers are strictly
// increasing; a failed transaction may leave a gap but never a duplicate.
func Next(db *gorm.DB) (string, error) {
	var number string
	err := db.Transaction(func(tx *gorm.DB) error {
		var seq models.TaskNumberSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("created_at ASC").First(&seq).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			seq = models.TaskNumberSequence{ID: uuid.NewString()}
			if err := tx.Create(&seq).Error; err != nil {
				return err
			}
			// Re-read under the lock so a racing creator serializes behind us.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&seq, "id = ?", seq.ID).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		seq.LastNumber++
		if err := tx.Model(&seq).Update("last_number", seq.LastNumber).Error; err != nil {
			return err
		}

		number = Format(time.Now().Year(), seq.LastNumber)
		return nil
	})
	if err != nil {
		return "", taskerr.Unavailable(err, "sequence: next task number")
	}
	return number, nil
}

// Format renders a task number for the given year and counter value.
func Format(year, n int) string {
	return fmt.Sprintf("TASK-%d-%06d", year, n)
}
