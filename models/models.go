package models

import (
	"time"
)

// Incident severity levels. MEDIUM is the default when a report omits severity.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Incident verification states.
const (
	VerifiedStatusUnverified = "UNVERIFIED"
	VerifiedStatusVerified   = "VERIFIED"
	VerifiedStatusDismissed  = "DISMISSED"
)

// Resource stock states, derived from quantity on every write.
const (
	ResourceAvailable  = "AVAILABLE"
	ResourceLowStock   = "LOW_STOCK"
	ResourceOutOfStock = "OUT_OF_STOCK"
)

// Volunteer availability states.
const (
	VolunteerAvailable = "AVAILABLE"
	VolunteerDeployed  = "DEPLOYED"
	VolunteerOffDuty   = "OFF_DUTY"
)

// TeamCategories lists the volunteer team groupings shown on the teams page.
var TeamCategories = []string{"MEDICAL", "RESCUE", "LOGISTICS", "COMMUNICATIONS", "GENERAL"}

// Incident is a single emergency observation reported from the field.
type Incident struct {
	ID             int64     `json:"id" db:"id"`
	Category       string    `json:"category" db:"category"`
	Description    string    `json:"description" db:"description"`
	Severity       string    `json:"severity" db:"severity"`
	Latitude       float64   `json:"latitude" db:"latitude"`
	Longitude      float64   `json:"longitude" db:"longitude"`
	ImageryURL     string    `json:"imageryUrl,omitempty" db:"imagery_url"`
	VerifiedStatus string    `json:"verifiedStatus" db:"verified_status"`
	IsQuickAlert   bool      `json:"isQuickAlert" db:"is_quick_alert"`
	ReporterID     string    `json:"reporterId,omitempty" db:"reporter_id"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// Organization is an NGO or relief agency account.
type Organization struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Type             string    `json:"type" db:"type"`
	OfficeNumber     string    `json:"officeNumber,omitempty" db:"office_number"`
	PublicEmail      string    `json:"publicEmail,omitempty" db:"public_email"`
	Latitude         *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude        *float64  `json:"longitude,omitempty" db:"longitude"`
	IsVerified       bool      `json:"isVerified" db:"is_verified"`
	VerificationDocs string    `json:"verificationDocs,omitempty" db:"verification_docs"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

// Volunteer is an individual responder, optionally attached to an organization.
type Volunteer struct {
	ID                string        `json:"id" db:"id"`
	Name              string        `json:"name" db:"name"`
	Status            string        `json:"status" db:"status"`
	TeamCategory      string        `json:"teamCategory" db:"team_category"`
	OrganizationID    *string       `json:"organizationId,omitempty" db:"organization_id"`
	IsVerifiedByNGO   bool          `json:"isVerifiedByNGO" db:"is_verified_by_ngo"`
	IsVerifiedByAdmin bool          `json:"isVerifiedByAdmin" db:"is_verified_by_admin"`
	VerificationDocs  string        `json:"verificationDocs,omitempty" db:"verification_docs"`
	CurrentIncidentID *int64        `json:"currentIncidentId,omitempty" db:"current_incident_id"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	Organization      *Organization `json:"organization,omitempty"`
}

// Resource is an inventory line item owned by an organization.
type Resource struct {
	ID             int64     `json:"id" db:"id"`
	Item           string    `json:"item" db:"item"`
	Category       string    `json:"category" db:"category"`
	Quantity       int       `json:"quantity" db:"quantity"`
	Status         string    `json:"status" db:"status"`
	Location       string    `json:"location,omitempty" db:"location"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	IsSurplus      bool      `json:"isSurplus" db:"is_surplus"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// ResourceStatusFor derives the stock status for a quantity.
func ResourceStatusFor(quantity int) string {
	switch {
	case quantity <= 0:
		return ResourceOutOfStock
	case quantity < 10:
		return ResourceLowStock
	default:
		return ResourceAvailable
	}
}

// TeamStat is the per-category volunteer count for the teams page.
type TeamStat struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// TeamsData bundles category counts with the most recent volunteers.
type TeamsData struct {
	Stats      []TeamStat  `json:"stats"`
	Volunteers []Volunteer `json:"volunteers"`
}

// MapPoint is one aggregated cluster of incidents inside a map viewport.
type MapPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Count     int64   `json:"count"`
}

// BroadcastMessage is the envelope pushed to websocket subscribers.
type BroadcastMessage struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}
