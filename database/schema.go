package database

import (
	"database/sql"
	"fmt"
)

// Schema contains the database schema for the relief coordination API.
const Schema = `
CREATE TABLE IF NOT EXISTS incidents (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    category VARCHAR(64) NOT NULL,
    description TEXT,
    severity ENUM('LOW', 'MEDIUM', 'HIGH', 'CRITICAL') NOT NULL DEFAULT 'MEDIUM',
    latitude DOUBLE NOT NULL,
    longitude DOUBLE NOT NULL,
    imagery_url VARCHAR(512) DEFAULT '',
    verified_status ENUM('UNVERIFIED', 'VERIFIED', 'DISMISSED') NOT NULL DEFAULT 'UNVERIFIED',
    is_quick_alert BOOLEAN NOT NULL DEFAULT FALSE,
    reporter_id VARCHAR(256) DEFAULT '',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_incidents_created (created_at),
    INDEX idx_incidents_coords (latitude, longitude)
);

CREATE TABLE IF NOT EXISTS organizations (
    id VARCHAR(256) PRIMARY KEY,
    name VARCHAR(256) NOT NULL,
    type VARCHAR(64) NOT NULL DEFAULT 'NGO',
    office_number VARCHAR(64) DEFAULT '',
    public_email VARCHAR(256) DEFAULT '',
    latitude DOUBLE NULL,
    longitude DOUBLE NULL,
    is_verified BOOLEAN NOT NULL DEFAULT FALSE,
    verification_docs JSON NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS volunteers (
    id VARCHAR(256) PRIMARY KEY,
    name VARCHAR(256) NOT NULL,
    status ENUM('AVAILABLE', 'DEPLOYED', 'OFF_DUTY') NOT NULL DEFAULT 'AVAILABLE',
    team_category ENUM('MEDICAL', 'RESCUE', 'LOGISTICS', 'COMMUNICATIONS', 'GENERAL') NOT NULL DEFAULT 'GENERAL',
    organization_id VARCHAR(256) NULL,
    is_verified_by_ngo BOOLEAN NOT NULL DEFAULT FALSE,
    is_verified_by_admin BOOLEAN NOT NULL DEFAULT FALSE,
    verification_docs JSON NULL,
    current_incident_id BIGINT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_volunteers_org (organization_id)
);

CREATE TABLE IF NOT EXISTS resources (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    item VARCHAR(256) NOT NULL,
    category VARCHAR(64) NOT NULL,
    quantity INT NOT NULL DEFAULT 0,
    status ENUM('AVAILABLE', 'LOW_STOCK', 'OUT_OF_STOCK') NOT NULL DEFAULT 'AVAILABLE',
    location VARCHAR(256) DEFAULT '',
    organization_id VARCHAR(256) NOT NULL,
    is_surplus BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_resources_org (organization_id),
    INDEX idx_resources_surplus (is_surplus)
);
`

// InitializeSchema creates all tables if they do not exist yet.
// Requires a connection opened with multiStatements=true.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
