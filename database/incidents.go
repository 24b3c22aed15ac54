package database

import (
	"context"

	"github.com/apex/log"

	"linkrelief/models"
)

// SaveIncident inserts a new incident and returns its assigned id.
func (s *Service) SaveIncident(ctx context.Context, in *models.Incident) (int64, error) {
	if in.Severity == "" {
		in.Severity = models.SeverityMedium
	}
	if in.VerifiedStatus == "" {
		in.VerifiedStatus = models.VerifiedStatusUnverified
	}

	result, err := s.db.ExecContext(ctx, `INSERT
	  INTO incidents (category, description, severity, latitude, longitude, imagery_url, verified_status, is_quick_alert, reporter_id)
	  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Category, in.Description, in.Severity, in.Latitude, in.Longitude,
		in.ImageryURL, in.VerifiedStatus, in.IsQuickAlert, in.ReporterID)
	if err := validateResult("saveIncident", result, err, true); err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	log.Infof("Incident %d saved (%s, severity %s)", id, in.Category, in.Severity)
	return id, nil
}

// GetIncident fetches one incident by id.
func (s *Service) GetIncident(ctx context.Context, id int64) (*models.Incident, error) {
	row := s.db.QueryRowContext(ctx, `
	  SELECT id, category, description, severity, latitude, longitude, imagery_url, verified_status, is_quick_alert, reporter_id, created_at
	  FROM incidents WHERE id = ?`, id)

	var in models.Incident
	err := row.Scan(&in.ID, &in.Category, &in.Description, &in.Severity, &in.Latitude, &in.Longitude,
		&in.ImageryURL, &in.VerifiedStatus, &in.IsQuickAlert, &in.ReporterID, &in.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// ListIncidents returns the most recent incidents, newest first.
func (s *Service) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
	  SELECT id, category, description, severity, latitude, longitude, imagery_url, verified_status, is_quick_alert, reporter_id, created_at
	  FROM incidents
	  ORDER BY created_at DESC
	  LIMIT ?`, limit)
	if err != nil {
		log.Errorf("listIncidents: query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0, limit)
	for rows.Next() {
		var in models.Incident
		if err := rows.Scan(&in.ID, &in.Category, &in.Description, &in.Severity, &in.Latitude, &in.Longitude,
			&in.ImageryURL, &in.VerifiedStatus, &in.IsQuickAlert, &in.ReporterID, &in.CreatedAt); err != nil {
			log.Errorf("listIncidents: scan failed: %v", err)
			continue
		}
		incidents = append(incidents, in)
	}
	return incidents, rows.Err()
}

// IncidentCoordsInViewport returns the coordinates of all incidents inside
// the given bounding box, used for map aggregation.
func (s *Service) IncidentCoordsInViewport(ctx context.Context, latMin, lonMin, latMax, lonMax float64) ([][2]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
	  SELECT latitude, longitude
	  FROM incidents
	  WHERE latitude > ? AND longitude > ?
	    AND latitude <= ? AND longitude <= ?`,
		latMin, lonMin, latMax, lonMax)
	if err != nil {
		log.Errorf("incidentCoords: query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	coords := make([][2]float64, 0, 100)
	for rows.Next() {
		var lat, lon float64
		if err := rows.Scan(&lat, &lon); err != nil {
			log.Errorf("incidentCoords: scan failed: %v", err)
			continue
		}
		coords = append(coords, [2]float64{lat, lon})
	}
	return coords, rows.Err()
}
