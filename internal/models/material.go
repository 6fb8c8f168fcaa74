package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material log types.
const (
	MaterialNeeded   = "needed"
	MaterialReceived = "received"
)

// MaterialLog tracks materials needed and received for a task.
type MaterialLog struct {
	ID       string `gorm:"primaryKey;size:36"`
	TaskID   string `gorm:"size:36;not null;index:idx_material_task_type"`
	LoggedBy string `gorm:"size:36"`
	LogType  string `gorm:"size:20;not null;index:idx_material_task_type;index"`

	MaterialName string          `gorm:"size:255;not null"`
	Quantity     decimal.Decimal `gorm:"type:decimal(10,2)"`
	Unit         string          `gorm:"size:50"`
	Notes        string          `gorm:"type:text"`

	LoggedAt time.Time `gorm:"autoCreateTime;index"`
}
