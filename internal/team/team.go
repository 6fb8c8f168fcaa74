// Package team manages technician teams used as assignment targets.
package team

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/db"
	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/taskerr"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a team.
type CreateOpts struct {
	Name        string
	Description string
	MemberIDs   []string
	ActorID     string
}

// Create creates a team and its initial members. Every member must carry the
// technician capability at addition time.
func Create(gdb *gorm.DB, dir identity.Directory, opts CreateOpts) (*models.TechnicianTeam, error) {
	if opts.Name == "" {
		return nil, taskerr.Validation(taskerr.ReasonInvalidInput, "team name is required")
	}
	if err := checkTechnicians(dir, opts.MemberIDs); err != nil {
		return nil, err
	}

	t := models.TechnicianTeam{
		ID:          uuid.NewString(),
		Name:        opts.Name,
		Description: opts.Description,
		Active:      true,
		CreatedBy:   opts.ActorID,
		UpdatedBy:   opts.ActorID,
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			if db.IsDuplicateKey(err) {
				return taskerr.Conflict(taskerr.ReasonInvalidInput, "a team named %q already exists", opts.Name)
			}
			return fmt.Errorf("team: create %q: %w", opts.Name, err)
		}
		for _, memberID := range opts.MemberIDs {
			m := models.TeamMember{
				TeamID:       t.ID,
				TechnicianID: memberID,
				AddedBy:      opts.ActorID,
				AddedAt:      time.Now(),
			}
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("team: add member %s: %w", memberID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(gdb, t.ID)
}

// Get retrieves a team by ID with its members preloaded.
func Get(gdb *gorm.DB, id string) (*models.TechnicianTeam, error) {
	var t models.TechnicianTeam
	if err := gdb.Preload("Members").Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, taskerr.NotFound("team %s not found", id)
		}
		return nil, fmt.Errorf("team: get %s: %w", id, err)
	}
	return &t, nil
}

// ListFilters holds optional filters for listing teams.
type ListFilters struct {
	Active *bool
	Name   string
}

// List returns teams matching the filters, ordered by name.
func List(gdb *gorm.DB, filters ListFilters) ([]models.TechnicianTeam, error) {
	q := gdb.Model(&models.TechnicianTeam{}).Preload("Members")
	if filters.Active != nil {
		q = q.Where("active = ?", *filters.Active)
	}
	if filters.Name != "" {
		q = q.Where("name = ?", filters.Name)
	}

	var teams []models.TechnicianTeam
	if err := q.Order("name ASC").Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("team: list: %w", err)
	}
	return teams, nil
}

// AddMembers adds technicians to a team. Already-present members are skipped.
func AddMembers(gdb *gorm.DB, dir identity.Directory, teamID string, memberIDs []string, actorID string) error {
	t, err := Get(gdb, teamID)
	if err != nil {
		return err
	}
	if err := checkTechnicians(dir, memberIDs); err != nil {
		return err
	}

	existing := make(map[string]bool, len(t.Members))
	for _, m := range t.Members {
		existing[m.TechnicianID] = true
	}

	return gdb.Transaction(func(tx *gorm.DB) error {
		for _, memberID := range memberIDs {
			if existing[memberID] {
				continue
			}
			m := models.TeamMember{
				TeamID:       teamID,
				TechnicianID: memberID,
				AddedBy:      actorID,
				AddedAt:      time.Now(),
			}
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("team: add member %s to %s: %w", memberID, teamID, err)
			}
		}
		return nil
	})
}

// RemoveMember removes one technician from a team.
func RemoveMember(gdb *gorm.DB, teamID, memberID string) error {
	result := gdb.Where("team_id = ? AND technician_id = ?", teamID, memberID).
		Delete(&models.TeamMember{})
	if result.Error != nil {
		return fmt.Errorf("team: remove member %s from %s: %w", memberID, teamID, result.Error)
	}
	if result.RowsAffected == 0 {
		return taskerr.NotFound("technician %s is not a member of team %s", memberID, teamID)
	}
	return nil
}

// SetActive flips a team's active flag. Inactive teams cannot receive new
// assignments.
func SetActive(gdb *gorm.DB, teamID string, active bool, actorID string) error {
	result := gdb.Model(&models.TechnicianTeam{}).Where("id = ?", teamID).
		Updates(map[string]interface{}{"active": active, "updated_by": actorID})
	if result.Error != nil {
		return fmt.Errorf("team: set active %s: %w", teamID, result.Error)
	}
	if result.RowsAffected == 0 {
		return taskerr.NotFound("team %s not found", teamID)
	}
	return nil
}

// MemberIDs returns the technician IDs of a team's members.
func MemberIDs(gdb *gorm.DB, teamID string) ([]string, error) {
	var ids []string
	if err := gdb.Model(&models.TeamMember{}).Where("team_id = ?", teamID).
		Pluck("technician_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("team: members of %s: %w", teamID, err)
	}
	return ids, nil
}

// checkTechnicians verifies every ID resolves to a technician identity.
func checkTechnicians(dir identity.Directory, ids []string) error {
	for _, id := range ids {
		ident, err := dir.Lookup(id)
		if err != nil {
			return err
		}
		if !ident.Technician {
			return taskerr.Validation(taskerr.ReasonInvalidInput,
				"%s is not a technician and cannot join a team", ident.DisplayName())
		}
	}
	return nil
}
