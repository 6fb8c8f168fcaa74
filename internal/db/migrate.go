package db

import (
	"fmt"

	"github.com/fieldpilot/fieldpilot/internal/models"
	"gorm.io/gorm"
)

// AllModels returns all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Task{},
		&models.TaskNumberSequence{},
		&models.TechnicianTeam{},
		&models.TeamMember{},
		&models.TaskAssignment{},
		&models.TimeLog{},
		&models.TaskHistory{},
		&models.TaskComment{},
		&models.MaterialLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// Reset drops and recreates all tables. Destructive; used by `fp db reset`.
func Reset(db *gorm.DB) error {
	if err := db.Migrator().DropTable(AllModels()...); err != nil {
		return fmt.Errorf("db: drop tables: %w", err)
	}
	return AutoMigrate(db)
}
