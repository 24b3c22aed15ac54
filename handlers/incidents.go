package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	imagepkg "linkrelief/image"
	"linkrelief/mapaggr"
	"linkrelief/models"
	ws "linkrelief/websocket"
)

var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CreateIncidentRequest is the JSON payload for incident submission.
// Multipart submissions carry the same fields as form values plus an
// optional "image" file part.
type CreateIncidentRequest struct {
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	Severity     string  `json:"severity"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	IsQuickAlert bool    `json:"isQuickAlert"`
	ReporterID   string  `json:"reporterId"`
}

// CreateIncident handles POST /api/incidents.
func (h *Handlers) CreateIncident(c *gin.Context) {
	var req CreateIncidentRequest
	var imageData []byte

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := h.bindMultipartIncident(c, &req, &imageData); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	} else if err := c.BindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Category == "" || req.Description == "" {
		respondError(c, http.StatusBadRequest, "category and description are required")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		respondError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}

	incident := &models.Incident{
		Category:     req.Category,
		Description:  req.Description,
		Severity:     req.Severity,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		IsQuickAlert: req.IsQuickAlert,
		ReporterID:   req.ReporterID,
	}

	if len(imageData) > 0 {
		scaled, err := imagepkg.ScaleDown(imageData)
		if err != nil {
			if errors.Is(err, imagepkg.ErrTooLarge) {
				respondError(c, http.StatusBadRequest, "image could not be compressed under the size limit")
				return
			}
			respondError(c, http.StatusBadRequest, "invalid image")
			return
		}
		incident.ImageryURL = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(scaled)
	}

	id, err := h.db.SaveIncident(c.Request.Context(), incident)
	if err != nil {
		log.Errorf("Failed to save incident: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to save incident")
		return
	}
	incident.ID = id

	saved, err := h.db.GetIncident(c.Request.Context(), id)
	if err == nil {
		incident = saved
	}

	h.hub.BroadcastIncident(incident)
	if h.publisher != nil {
		if err := h.publisher.PublishIncident(incident); err != nil {
			log.Warnf("Failed to publish incident %d: %v", id, err)
		}
	}

	respondCreated(c, "incident reported", incident)
}

func (h *Handlers) bindMultipartIncident(c *gin.Context, req *CreateIncidentRequest, imageData *[]byte) error {
	req.Category = c.PostForm("category")
	req.Description = c.PostForm("description")
	req.Severity = c.PostForm("severity")
	req.ReporterID = c.PostForm("reporterId")
	req.IsQuickAlert = c.PostForm("isQuickAlert") == "true"

	var err error
	if v := c.PostForm("latitude"); v != "" {
		if req.Latitude, err = strconv.ParseFloat(v, 64); err != nil {
			return errors.New("invalid latitude")
		}
	}
	if v := c.PostForm("longitude"); v != "" {
		if req.Longitude, err = strconv.ParseFloat(v, 64); err != nil {
			return errors.New("invalid longitude")
		}
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil
		}
		return errors.New("invalid image upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		return errors.New("failed to read image upload")
	}
	if int64(len(data)) > h.maxUpload {
		return errors.New("image upload too large")
	}
	*imageData = data
	return nil
}

// ListIncidents handles GET /api/incidents.
func (h *Handlers) ListIncidents(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			respondError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	incidents, err := h.db.ListIncidents(c.Request.Context(), limit)
	if err != nil {
		log.Errorf("Failed to list incidents: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch incidents")
		return
	}
	respondOK(c, "", incidents)
}

// IncidentMap handles GET /api/incidents/map. Points inside the viewport
// are clustered into S2 cells sized for the zoom level.
func (h *Handlers) IncidentMap(c *gin.Context) {
	var vp mapaggr.ViewPort
	if err := c.ShouldBindQuery(&vp); err != nil {
		respondError(c, http.StatusBadRequest, "invalid viewport")
		return
	}
	if vp.LatMin >= vp.LatMax || vp.LonMin >= vp.LonMax {
		respondError(c, http.StatusBadRequest, "empty viewport")
		return
	}

	coords, err := h.db.IncidentCoordsInViewport(c.Request.Context(), vp.LatMin, vp.LonMin, vp.LatMax, vp.LonMax)
	if err != nil {
		log.Errorf("Failed to query viewport incidents: %v", err)
		respondError(c, http.StatusInternalServerError, "failed to fetch map data")
		return
	}

	agg := mapaggr.New(&vp)
	for _, coord := range coords {
		agg.AddPoint(coord[0], coord[1])
	}
	respondOK(c, "", agg.ToArray())
}

// IncidentWebSocket handles GET /api/ws/incidents, upgrading the
// connection and subscribing it to incident broadcasts.
func (h *Handlers) IncidentWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
