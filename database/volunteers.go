package database

import (
	"context"
	"database/sql"

	"github.com/apex/log"

	"linkrelief/models"
)

// SyncVolunteer upserts a volunteer row for an externally authenticated
// account. Called once after signup.
func (s *Service) SyncVolunteer(ctx context.Context, id, name string) error {
	result, err := s.db.ExecContext(ctx, `INSERT INTO volunteers (id, name, status)
	  VALUES (?, ?, 'AVAILABLE')
	  ON DUPLICATE KEY UPDATE name = name`,
		id, name)
	return validateResult("syncVolunteer", result, err, false)
}

const volunteerColumns = `v.id, v.name, v.status, v.team_category, v.organization_id,
	  v.is_verified_by_ngo, v.is_verified_by_admin, v.verification_docs, v.current_incident_id, v.created_at`

func scanVolunteer(row interface{ Scan(...any) error }) (*models.Volunteer, error) {
	var vol models.Volunteer
	var docs sql.NullString
	err := row.Scan(&vol.ID, &vol.Name, &vol.Status, &vol.TeamCategory, &vol.OrganizationID,
		&vol.IsVerifiedByNGO, &vol.IsVerifiedByAdmin, &docs, &vol.CurrentIncidentID, &vol.CreatedAt)
	if err != nil {
		return nil, err
	}
	vol.VerificationDocs = docs.String
	return &vol, nil
}

// GetVolunteer fetches one volunteer with its organization, if attached.
func (s *Service) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+volunteerColumns+` FROM volunteers v WHERE v.id = ?`, id)
	vol, err := scanVolunteer(row)
	if err != nil {
		return nil, err
	}

	if vol.OrganizationID != nil {
		org, err := s.GetOrganization(ctx, *vol.OrganizationID)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		vol.Organization = org
	}
	return vol, nil
}

// VolunteerUpdate carries the optional profile fields of a PUT request.
type VolunteerUpdate struct {
	Name              string  `json:"name"`
	Status            string  `json:"status"`
	TeamCategory      string  `json:"teamCategory"`
	OrganizationID    *string `json:"organizationId"`
	CurrentIncidentID *int64  `json:"currentIncidentId"`
	// SetOrganization distinguishes "leave unchanged" from "detach".
	SetOrganization bool `json:"-"`
}

// UpdateVolunteer applies the provided fields. Switching organizations
// resets the NGO verification flag.
func (s *Service) UpdateVolunteer(ctx context.Context, id string, upd *VolunteerUpdate) error {
	result, err := s.db.ExecContext(ctx, `UPDATE volunteers SET
	  name = COALESCE(NULLIF(?, ''), name),
	  status = COALESCE(NULLIF(?, ''), status),
	  team_category = COALESCE(NULLIF(?, ''), team_category),
	  current_incident_id = COALESCE(?, current_incident_id)
	  WHERE id = ?`,
		upd.Name, upd.Status, upd.TeamCategory, upd.CurrentIncidentID, id)
	if err := validateResult("updateVolunteer", result, err, false); err != nil {
		return err
	}

	if upd.SetOrganization {
		result, err := s.db.ExecContext(ctx,
			`UPDATE volunteers SET organization_id = ?, is_verified_by_ngo = FALSE WHERE id = ?`,
			upd.OrganizationID, id)
		if err := validateResult("updateVolunteerOrg", result, err, false); err != nil {
			return err
		}
		log.Infof("Volunteer %s moved to organization %v, NGO verification reset", id, upd.OrganizationID)
	}
	return nil
}

func (s *Service) listVolunteers(ctx context.Context, where string, args ...any) ([]models.Volunteer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+volunteerColumns+` FROM volunteers v `+where+` ORDER BY v.created_at DESC`, args...)
	if err != nil {
		log.Errorf("listVolunteers: query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	vols := make([]models.Volunteer, 0)
	for rows.Next() {
		vol, err := scanVolunteer(rows)
		if err != nil {
			log.Errorf("listVolunteers: scan failed: %v", err)
			continue
		}
		vols = append(vols, *vol)
	}
	return vols, rows.Err()
}

// OrganizationVolunteers lists volunteers attached to an organization.
func (s *Service) OrganizationVolunteers(ctx context.Context, orgID string) ([]models.Volunteer, error) {
	return s.listVolunteers(ctx, "WHERE v.organization_id = ?", orgID)
}

// AllVolunteers returns the full admin directory.
func (s *Service) AllVolunteers(ctx context.Context) ([]models.Volunteer, error) {
	return s.listVolunteers(ctx, "")
}

// PendingIndependents returns unattached volunteers awaiting admin review.
func (s *Service) PendingIndependents(ctx context.Context) ([]models.Volunteer, error) {
	return s.listVolunteers(ctx, "WHERE v.organization_id IS NULL AND v.is_verified_by_admin = FALSE")
}

// SetVolunteerDocs stores submitted verification documents. Returns
// sql.ErrNoRows for an unknown volunteer.
func (s *Service) SetVolunteerDocs(ctx context.Context, id, docs string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE volunteers SET verification_docs = ? WHERE id = ?`, docs, id)
	if err := validateResult("setVolunteerDocs", result, err, false); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetVolunteerNGOVerification sets or clears the NGO verification flag.
func (s *Service) SetVolunteerNGOVerification(ctx context.Context, id string, verified bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE volunteers SET is_verified_by_ngo = ? WHERE id = ?`, verified, id)
	return validateResult("setVolunteerNGOVerification", result, err, false)
}

// VerifyVolunteerByAdmin marks an independent volunteer admin-verified.
func (s *Service) VerifyVolunteerByAdmin(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE volunteers SET is_verified_by_admin = TRUE WHERE id = ?`, id)
	return validateResult("verifyVolunteerByAdmin", result, err, false)
}

// TeamStats aggregates volunteer counts per team category, optionally
// scoped to one organization, plus the most recent volunteers.
func (s *Service) TeamStats(ctx context.Context, orgID string) (*models.TeamsData, error) {
	where := ""
	args := []any{}
	if orgID != "" {
		where = "WHERE organization_id = ?"
		args = append(args, orgID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT team_category, COUNT(*) FROM volunteers `+where+` GROUP BY team_category`, args...)
	if err != nil {
		log.Errorf("teamStats: query failed: %v", err)
		return nil, err
	}
	counts := map[string]int{}
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			log.Errorf("teamStats: scan failed: %v", err)
			continue
		}
		counts[category] = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := make([]models.TeamStat, 0, len(models.TeamCategories))
	for _, category := range models.TeamCategories {
		stats = append(stats, models.TeamStat{Category: category, Count: counts[category]})
	}

	recentWhere := ""
	if orgID != "" {
		recentWhere = "WHERE v.organization_id = ?"
	}
	recentRows, err := s.db.QueryContext(ctx,
		`SELECT `+volunteerColumns+` FROM volunteers v `+recentWhere+` ORDER BY v.created_at DESC LIMIT 20`, args...)
	if err != nil {
		log.Errorf("teamStats: recent query failed: %v", err)
		return nil, err
	}
	defer recentRows.Close()

	recent := make([]models.Volunteer, 0, 20)
	for recentRows.Next() {
		vol, err := scanVolunteer(recentRows)
		if err != nil {
			log.Errorf("teamStats: scan failed: %v", err)
			continue
		}
		recent = append(recent, *vol)
	}
	if err := recentRows.Err(); err != nil {
		return nil, err
	}
	return &models.TeamsData{Stats: stats, Volunteers: recent}, nil
}
