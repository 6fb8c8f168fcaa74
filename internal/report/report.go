// Package report aggregates completed visits into work-hour summaries.
package report

import (
	"fmt"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Filters narrows a work-hours report. From and To bound the departure time.
type Filters struct {
	TechnicianID string
	TaskID       string
	From         *time.Time
	To           *time.Time
}

// TechnicianHours is one technician's aggregated totals.
type TechnicianHours struct {
	TechnicianID string
	Visits       int
	Total        decimal.Decimal
	Normal       decimal.Decimal
	Overtime     decimal.Decimal
}

// WorkHours sums the hour breakdowns of closed visits, grouped by technician.
// Open visits carry no hours yet and are excluded. Sums run over the stored
// decimals, so report totals match the per-visit records exactly.
func WorkHours(gdb *gorm.DB, filters Filters) ([]TechnicianHours, error) {
	q := gdb.Model(&models.TimeLog{}).Where("departed_at IS NOT NULL")
	if filters.TechnicianID != "" {
		q = q.Where("technician_id = ?", filters.TechnicianID)
	}
	if filters.TaskID != "" {
		q = q.Where("task_id = ?", filters.TaskID)
	}
	if filters.From != nil {
		q = q.Where("departed_at >= ?", *filters.From)
	}
	if filters.To != nil {
		q = q.Where("departed_at < ?", *filters.To)
	}

	var logs []models.TimeLog
	if err := q.Order("technician_id ASC, departed_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("report: work hours: %w", err)
	}

	var out []TechnicianHours
	for _, l := range logs {
		if len(out) == 0 || out[len(out)-1].TechnicianID != l.TechnicianID {
			out = append(out, TechnicianHours{
				TechnicianID: l.TechnicianID,
				Total:        decimal.Zero,
				Normal:       decimal.Zero,
				Overtime:     decimal.Zero,
			})
		}
		agg := &out[len(out)-1]
		agg.Visits++
		agg.Total = agg.Total.Add(l.TotalWorkHours)
		agg.Normal = agg.Normal.Add(l.NormalHours)
		agg.Overtime = agg.Overtime.Add(l.OvertimeHours)
	}
	return out, nil
}

// TaskSummary is the hour totals of one task across all technicians.
type TaskSummary struct {
	TaskID   string
	Visits   int
	Total    decimal.Decimal
	Normal   decimal.Decimal
	Overtime decimal.Decimal
}

// ForTask sums a single task's completed visits.
func ForTask(gdb *gorm.DB, taskID string) (*TaskSummary, error) {
	rows, err := WorkHours(gdb, Filters{TaskID: taskID})
	if err != nil {
		return nil, err
	}

	s := TaskSummary{
		TaskID:   taskID,
		Total:    decimal.Zero,
		Normal:   decimal.Zero,
		Overtime: decimal.Zero,
	}
	for _, r := range rows {
		s.Visits += r.Visits
		s.Total = s.Total.Add(r.Total)
		s.Normal = s.Normal.Add(r.Normal)
		s.Overtime = s.Overtime.Add(r.Overtime)
	}
	return &s, nil
}
