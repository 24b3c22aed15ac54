package database

import (
	"context"
	"database/sql"

	"github.com/apex/log"

	"linkrelief/models"
)

// SyncOrganization upserts an organization row for an externally
// authenticated account. Called once after signup.
func (s *Service) SyncOrganization(ctx context.Context, id, name, orgType string) error {
	if orgType == "" {
		orgType = "NGO"
	}
	result, err := s.db.ExecContext(ctx, `INSERT INTO organizations (id, name, type, is_verified)
	  VALUES (?, ?, ?, FALSE)
	  ON DUPLICATE KEY UPDATE name = name`,
		id, name, orgType)
	return validateResult("syncOrganization", result, err, false)
}

func scanOrganization(row interface{ Scan(...any) error }) (*models.Organization, error) {
	var org models.Organization
	var docs sql.NullString
	err := row.Scan(&org.ID, &org.Name, &org.Type, &org.OfficeNumber, &org.PublicEmail,
		&org.Latitude, &org.Longitude, &org.IsVerified, &docs, &org.CreatedAt)
	if err != nil {
		return nil, err
	}
	org.VerificationDocs = docs.String
	return &org, nil
}

const organizationColumns = `id, name, type, office_number, public_email, latitude, longitude, is_verified, verification_docs, created_at`

// GetOrganization fetches one organization by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id)
	return scanOrganization(row)
}

// OrganizationUpdate carries the optional profile fields of a PUT request.
type OrganizationUpdate struct {
	Name         string   `json:"name"`
	OfficeNumber string   `json:"officeNumber"`
	PublicEmail  string   `json:"publicEmail"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
}

// UpdateOrganization applies the provided fields; empty/nil fields are
// left untouched.
func (s *Service) UpdateOrganization(ctx context.Context, id string, upd *OrganizationUpdate) error {
	query := `UPDATE organizations SET
	  name = COALESCE(NULLIF(?, ''), name),
	  office_number = COALESCE(NULLIF(?, ''), office_number),
	  public_email = COALESCE(NULLIF(?, ''), public_email),
	  latitude = COALESCE(?, latitude),
	  longitude = COALESCE(?, longitude)
	  WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query,
		upd.Name, upd.OfficeNumber, upd.PublicEmail, upd.Latitude, upd.Longitude, id)
	return validateResult("updateOrganization", result, err, false)
}

func (s *Service) listOrganizations(ctx context.Context, where string, args ...any) ([]models.Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+organizationColumns+` FROM organizations `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		log.Errorf("listOrganizations: query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	orgs := make([]models.Organization, 0)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			log.Errorf("listOrganizations: scan failed: %v", err)
			continue
		}
		orgs = append(orgs, *org)
	}
	return orgs, rows.Err()
}

// VerifiedOrganizations returns the public directory of verified orgs.
func (s *Service) VerifiedOrganizations(ctx context.Context) ([]models.Organization, error) {
	return s.listOrganizations(ctx, "WHERE is_verified = TRUE")
}

// AllOrganizations returns the full admin directory.
func (s *Service) AllOrganizations(ctx context.Context) ([]models.Organization, error) {
	return s.listOrganizations(ctx, "")
}

// PendingOrganizations returns organizations awaiting admin approval.
func (s *Service) PendingOrganizations(ctx context.Context) ([]models.Organization, error) {
	return s.listOrganizations(ctx, "WHERE is_verified = FALSE")
}

// SetOrganizationDocs stores submitted verification documents and resets
// the verified flag until an admin reviews them.
func (s *Service) SetOrganizationDocs(ctx context.Context, id, docs string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET verification_docs = ?, is_verified = FALSE WHERE id = ?`, docs, id)
	if err := validateResult("setOrganizationDocs", result, err, false); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApproveOrganization marks an NGO verified and records its contact details.
func (s *Service) ApproveOrganization(ctx context.Context, id, officeNumber, publicEmail string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE organizations SET
	  is_verified = TRUE,
	  office_number = COALESCE(NULLIF(?, ''), office_number),
	  public_email = COALESCE(NULLIF(?, ''), public_email)
	  WHERE id = ?`, officeNumber, publicEmail, id)
	return validateResult("approveOrganization", result, err, false)
}

// VerifyOrganization marks an organization verified without touching
// contact details.
func (s *Service) VerifyOrganization(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET is_verified = TRUE WHERE id = ?`, id)
	return validateResult("verifyOrganization", result, err, false)
}
