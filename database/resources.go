package database

import (
	"context"
	"database/sql"

	"github.com/apex/log"

	"linkrelief/models"
)

const resourceColumns = `id, item, category, quantity, status, location, organization_id, is_surplus, updated_at`

func scanResource(row interface{ Scan(...any) error }) (*models.Resource, error) {
	var res models.Resource
	err := row.Scan(&res.ID, &res.Item, &res.Category, &res.Quantity, &res.Status,
		&res.Location, &res.OrganizationID, &res.IsSurplus, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListResources filters by organization and/or surplus flag. Empty orgID
// and surplus=false means all resources.
func (s *Service) ListResources(ctx context.Context, orgID string, surplusOnly bool) ([]models.Resource, error) {
	where := "WHERE 1=1"
	args := []any{}
	if orgID != "" {
		where += " AND organization_id = ?"
		args = append(args, orgID)
	}
	if surplusOnly {
		where += " AND is_surplus = TRUE"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resourceColumns+` FROM resources `+where+` ORDER BY updated_at DESC`, args...)
	if err != nil {
		log.Errorf("listResources: query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	resources := make([]models.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			log.Errorf("listResources: scan failed: %v", err)
			continue
		}
		resources = append(resources, *res)
	}
	return resources, rows.Err()
}

// CreateResource inserts an inventory line item. Stock status is derived
// from the quantity, never taken from the caller.
func (s *Service) CreateResource(ctx context.Context, res *models.Resource) (int64, error) {
	res.Status = models.ResourceStatusFor(res.Quantity)

	result, err := s.db.ExecContext(ctx, `INSERT
	  INTO resources (item, category, quantity, status, location, organization_id, is_surplus)
	  VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.Item, res.Category, res.Quantity, res.Status, res.Location, res.OrganizationID, res.IsSurplus)
	if err := validateResult("createResource", result, err, true); err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateResourceQuantity sets a new quantity (re-deriving stock status)
// and optionally flips the surplus flag.
func (s *Service) UpdateResourceQuantity(ctx context.Context, id int64, quantity int, isSurplus *bool) (*models.Resource, error) {
	status := models.ResourceStatusFor(quantity)

	var result sql.Result
	var err error
	if isSurplus != nil {
		result, err = s.db.ExecContext(ctx,
			`UPDATE resources SET quantity = ?, status = ?, is_surplus = ? WHERE id = ?`,
			quantity, status, *isSurplus, id)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE resources SET quantity = ?, status = ? WHERE id = ?`,
			quantity, status, id)
	}
	if err := validateResult("updateResource", result, err, false); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+resourceColumns+` FROM resources WHERE id = ?`, id)
	return scanResource(row)
}

// DeleteResource removes an inventory line item. Returns sql.ErrNoRows
// for an unknown id.
func (s *Service) DeleteResource(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE id = ?`, id)
	if err := validateResult("deleteResource", result, err, false); err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
