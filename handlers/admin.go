package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// docsRequest carries uploaded verification document references.
type docsRequest struct {
	Docs string `json:"docs" binding:"required"`
}

// SubmitOrganizationDocs handles POST /api/organization/:id/verify-docs.
// Submitting new documents puts the organization back in the review queue.
func (h *Handlers) SubmitOrganizationDocs(c *gin.Context) {
	var req docsRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "docs is required")
		return
	}

	id := c.Param("id")
	if err := h.db.SetOrganizationDocs(c.Request.Context(), id, req.Docs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "organization not found")
			return
		}
		log.Errorf("Failed to store organization docs for %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to submit documents")
		return
	}
	respondOK(c, "documents submitted for review", gin.H{"id": id})
}

// SubmitVolunteerDocs handles POST /api/volunteer/:id/verify-docs.
func (h *Handlers) SubmitVolunteerDocs(c *gin.Context) {
	var req docsRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "docs is required")
		return
	}

	id := c.Param("id")
	if err := h.db.SetVolunteerDocs(c.Request.Context(), id, req.Docs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "volunteer not found")
			return
		}
		log.Errorf("Failed to store volunteer docs for %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to submit documents")
		return
	}
	respondOK(c, "documents submitted for review", gin.H{"id": id})
}

// approveNGORequest carries the contact details recorded on approval.
type approveNGORequest struct {
	OfficeNumber string `json:"officeNumber"`
	PublicEmail  string `json:"publicEmail"`
}

// ApproveNGO handles POST /api/admin/approve-ngo/:id. The contact
// details body is optional, but a body that is present must parse.
func (h *Handlers) ApproveNGO(c *gin.Context) {
	var req approveNGORequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	id := c.Param("id")
	if err := h.db.ApproveOrganization(c.Request.Context(), id, req.OfficeNumber, req.PublicEmail); err != nil {
		log.Errorf("Failed to approve NGO %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to approve organization")
		return
	}
	log.Infof("Organization %s approved", id)
	respondOK(c, "organization approved", gin.H{"id": id})
}

// VerifyOrganization handles POST /api/admin/verify/:id.
func (h *Handlers) VerifyOrganization(c *gin.Context) {
	id := c.Param("id")
	if err := h.db.VerifyOrganization(c.Request.Context(), id); err != nil {
		log.Errorf("Failed to verify organization %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to verify organization")
		return
	}
	respondOK(c, "organization verified", gin.H{"id": id})
}

// VerifyVolunteerByAdmin handles POST /api/admin/verify-volunteer/:id,
// the path for independent volunteers without an organization.
func (h *Handlers) VerifyVolunteerByAdmin(c *gin.Context) {
	id := c.Param("id")
	if err := h.db.VerifyVolunteerByAdmin(c.Request.Context(), id); err != nil {
		log.Errorf("Failed to verify volunteer %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to verify volunteer")
		return
	}
	respondOK(c, "volunteer verified", gin.H{"id": id})
}

// ngoVerifyRequest toggles a member's verification.
type ngoVerifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// VerifyVolunteerByNGO handles POST /api/ngo/verify-volunteer/:id.
func (h *Handlers) VerifyVolunteerByNGO(c *gin.Context) {
	var req ngoVerifyRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "verified is required")
		return
	}

	id := c.Param("id")
	if err := h.db.SetVolunteerNGOVerification(c.Request.Context(), id, *req.Verified); err != nil {
		log.Errorf("Failed to set NGO verification for %s: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to update verification")
		return
	}
	respondOK(c, "verification updated", gin.H{"id": id, "verified": *req.Verified})
}

// PendingNGOs handles GET /api/admin/pending-ngos.
func (h *Handlers) PendingNGOs(c *gin.Context) {
	orgs, err := h.db.PendingOrganizations(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list pending NGOs: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch pending organizations")
		return
	}
	respondOK(c, "", orgs)
}

// PendingIndependents handles GET /api/admin/pending-independents.
func (h *Handlers) PendingIndependents(c *gin.Context) {
	vols, err := h.db.PendingIndependents(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list pending independents: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch pending volunteers")
		return
	}
	respondOK(c, "", vols)
}

// AdminOrganizations handles GET /api/admin/organizations.
func (h *Handlers) AdminOrganizations(c *gin.Context) {
	orgs, err := h.db.AllOrganizations(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list organizations: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch organizations")
		return
	}
	respondOK(c, "", orgs)
}

// AdminVolunteers handles GET /api/admin/volunteers.
func (h *Handlers) AdminVolunteers(c *gin.Context) {
	vols, err := h.db.AllVolunteers(c.Request.Context())
	if err != nil {
		log.Errorf("Failed to list volunteers: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch volunteers")
		return
	}
	respondOK(c, "", vols)
}

// NGOVolunteers handles GET /api/ngo/:id/volunteers, the roster an NGO
// reviews when verifying its members.
func (h *Handlers) NGOVolunteers(c *gin.Context) {
	vols, err := h.db.OrganizationVolunteers(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Errorf("Failed to list NGO volunteers: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch volunteers")
		return
	}
	respondOK(c, "", vols)
}
