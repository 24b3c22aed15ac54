package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"linkrelief/database"
)

// SyncRequest mirrors what the auth frontend posts right after signup.
type SyncRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name" binding:"required"`
	Role string `json:"role" binding:"required"`
	Type string `json:"type"`
}

// SyncAccount handles POST /api/auth/sync, creating the local profile
// row for an externally authenticated account.
func (h *Handlers) SyncAccount(c *gin.Context) {
	var req SyncRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "id, name and role are required")
		return
	}

	var err error
	switch req.Role {
	case "organization":
		err = h.db.SyncOrganization(c.Request.Context(), req.ID, req.Name, req.Type)
	case "volunteer":
		err = h.db.SyncVolunteer(c.Request.Context(), req.ID, req.Name)
	default:
		respondError(c, http.StatusBadRequest, "role must be organization or volunteer")
		return
	}
	if err != nil {
		log.Errorf("Failed to sync %s %s: %v", req.Role, req.ID, err)
		respondError(c, http.StatusInternalServerError, "failed to sync account")
		return
	}
	respondOK(c, "account synced", gin.H{"id": req.ID, "role": req.Role})
}

// GetProfile handles GET /api/profile/:id. The role query parameter
// selects which table to look in; volunteers come back with their
// organization attached.
func (h *Handlers) GetProfile(c *gin.Context) {
	id := c.Param("id")

	if c.Query("role") == "organization" {
		org, err := h.db.GetOrganization(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				respondError(c, http.StatusNotFound, "organization not found")
				return
			}
			log.Errorf("Failed to fetch organization %s: %v", id, err)
			respondError(c, http.StatusInternalServerError, "failed to fetch profile")
			return
		}
		respondOK(c, "", org)
		return
	}

	vol, err := h.db.GetVolunteer(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "volunteer not found")
			return
		}
		log.Errorf("Failed to fetch volunteer %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to fetch profile")
		return
	}
	respondOK(c, "", vol)
}

// UpdateOrganization handles PUT /api/organization/:id.
func (h *Handlers) UpdateOrganization(c *gin.Context) {
	var upd database.OrganizationUpdate
	if err := c.BindJSON(&upd); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	id := c.Param("id")
	if err := h.db.UpdateOrganization(c.Request.Context(), id, &upd); err != nil {
		log.Errorf("Failed to update organization %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to update organization")
		return
	}

	org, err := h.db.GetOrganization(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "organization not found")
		return
	}
	respondOK(c, "organization updated", org)
}

// UpdateVolunteer handles PUT /api/volunteer/:id. Sending an explicit
// organizationId key (including null) moves the volunteer, which resets
// NGO verification.
func (h *Handlers) UpdateVolunteer(c *gin.Context) {
	var raw map[string]json.RawMessage
	body, err := c.GetRawData()
	if err != nil || json.Unmarshal(body, &raw) != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var upd database.VolunteerUpdate
	if err := json.Unmarshal(body, &upd); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	_, upd.SetOrganization = raw["organizationId"]

	id := c.Param("id")
	if err := h.db.UpdateVolunteer(c.Request.Context(), id, &upd); err != nil {
		log.Errorf("Failed to update volunteer %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to update volunteer")
		return
	}

	vol, err := h.db.GetVolunteer(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusNotFound, "volunteer not found")
		return
	}
	respondOK(c, "volunteer updated", vol)
}

// ListOrganizations handles GET /api/organizations, the public directory
// of verified organizations.
func (h *Handlers) ListOrganizations(c *gin.Context) {
	orgs, err := h.db.VerifiedOrganizations(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list organizations: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch organizations")
		return
	}
	respondOK(c, "", orgs)
}

// OrganizationVolunteers handles GET /api/organization/:id/volunteers.
func (h *Handlers) OrganizationVolunteers(c *gin.Context) {
	vols, err := h.db.OrganizationVolunteers(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Errorf("Failed to list organization volunteers: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch volunteers")
		return
	}
	respondOK(c, "", vols)
}

// Teams handles GET /api/teams, returning per-category volunteer counts
// plus the most recent members. organizationId narrows to one org.
func (h *Handlers) Teams(c *gin.Context) {
	data, err := h.db.TeamStats(c.Request.Context(), c.Query("organizationId"))
	if err != nil {
		log.Errorf("Failed to compute team stats: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch teams")
		return
	}
	respondOK(c, "", data)
}
