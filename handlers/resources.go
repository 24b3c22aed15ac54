package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"linkrelief/models"
)

// ListResources handles GET /api/resources. organizationId narrows to
// one owner; surplus=true keeps only items flagged shareable.
func (h *Handlers) ListResources(c *gin.Context) {
	resources, err := h.db.ListResources(c.Request.Context(),
		c.Query("organizationId"), c.Query("surplus") == "true")
	if err != nil {
		log.Errorf("Failed to list resources: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch resources")
		return
	}
	respondOK(c, "", resources)
}

// CreateResourceRequest is the JSON payload for a new inventory item.
type CreateResourceRequest struct {
	Item           string `json:"item" binding:"required"`
	Category       string `json:"category"`
	Quantity       int    `json:"quantity"`
	Location       string `json:"location"`
	OrganizationID string `json:"organizationId" binding:"required"`
	IsSurplus      bool   `json:"isSurplus"`
}

// CreateResource handles POST /api/resources. Stock status is derived
// from the quantity, never taken from the client.
func (h *Handlers) CreateResource(c *gin.Context) {
	var req CreateResourceRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "item and organizationId are required")
		return
	}
	if req.Quantity < 0 {
		respondError(c, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	res := &models.Resource{
		Item:           req.Item,
		Category:       req.Category,
		Quantity:       req.Quantity,
		Location:       req.Location,
		OrganizationID: req.OrganizationID,
		IsSurplus:      req.IsSurplus,
	}
	id, err := h.db.CreateResource(c.Request.Context(), res)
	if err != nil {
		log.Errorf("Failed to create resource: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to create resource")
		return
	}
	res.ID = id
	res.Status = models.ResourceStatusFor(req.Quantity)

	respondCreated(c, "resource created", res)
}

// UpdateResourceRequest adjusts quantity and optionally the surplus flag.
type UpdateResourceRequest struct {
	Quantity  *int  `json:"quantity" binding:"required"`
	IsSurplus *bool `json:"isSurplus"`
}

// UpdateResource handles PUT /api/resources/:id.
func (h *Handlers) UpdateResource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid resource id")
		return
	}

	var req UpdateResourceRequest
	if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "quantity is required")
		return
	}
	if *req.Quantity < 0 {
		respondError(c, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	res, err := h.db.UpdateResourceQuantity(c.Request.Context(), id, *req.Quantity, req.IsSurplus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "resource not found")
			return
		}
		log.Errorf("Failed to update resource %d: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to update resource")
		return
	}
	respondOK(c, "resource updated", res)
}

// DeleteResource handles DELETE /api/resources/:id.
func (h *Handlers) DeleteResource(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid resource id")
		return
	}

	if err := h.db.DeleteResource(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, "resource not found")
			return
		}
		log.Errorf("Failed to delete resource %d: %v", id, err)
		respondError(c, http.StatusInternalServerError, "failed to delete resource")
		return
	}
	respondOK(c, "resource deleted", gin.H{"id": id})
}
