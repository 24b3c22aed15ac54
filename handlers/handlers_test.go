package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jknair0/beforeeach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkrelief/database"
	"linkrelief/middleware"
	ws "linkrelief/websocket"
)

const testJWTSecret = "test-secret"

var (
	db     *sql.DB
	mock   sqlmock.Sqlmock
	router *gin.Engine
)

func setUp() {
	gin.SetMode(gin.TestMode)
	db, mock, _ = sqlmock.New()

	hub := ws.NewHub()
	go hub.Run()

	h := NewHandlers(database.NewService(db), hub, nil, 10<<20)

	router = gin.New()
	router.GET("/health", h.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/incidents", h.CreateIncident)
		api.GET("/incidents", h.ListIncidents)
		api.GET("/incidents/map", h.IncidentMap)
		api.POST("/auth/sync", h.SyncAccount)
		api.GET("/profile/:id", h.GetProfile)
		api.GET("/resources", h.ListResources)
		api.POST("/resources", h.CreateResource)
		api.PUT("/resources/:id", h.UpdateResource)

		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(testJWTSecret), middleware.RequireRole("admin"))
		{
			admin.POST("/approve-ngo/:id", h.ApproveNGO)
			admin.GET("/pending-ngos", h.PendingNGOs)
		}
	}
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func postJSON(path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestCreateIncident(t *testing.T) {
	it(func() {
		mock.ExpectExec(`INSERT\s+INTO incidents`).
			WithArgs("FIRE", "warehouse fire", "HIGH", 37.77, -122.42, "", "UNVERIFIED", false, "vol-1").
			WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectQuery(`FROM incidents WHERE id = \?`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "category", "description", "severity", "latitude", "longitude",
				"imagery_url", "verified_status", "is_quick_alert", "reporter_id", "created_at",
			}).AddRow(7, "FIRE", "warehouse fire", "HIGH", 37.77, -122.42, "", "UNVERIFIED", false, "vol-1", time.Now()))

		w := postJSON("/api/incidents", gin.H{
			"category":    "FIRE",
			"description": "warehouse fire",
			"severity":    "HIGH",
			"latitude":    37.77,
			"longitude":   -122.42,
			"reporterId":  "vol-1",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.Equal(t, "success", envelope["status"])
		data := envelope["data"].(map[string]any)
		assert.Equal(t, float64(7), data["id"])
		assert.Equal(t, "HIGH", data["severity"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCreateIncidentRequiresCategoryAndDescription(t *testing.T) {
	it(func() {
		w := postJSON("/api/incidents", gin.H{"description": "no category"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = postJSON("/api/incidents", gin.H{"category": "FLOOD"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateIncidentRejectsBadCoordinates(t *testing.T) {
	it(func() {
		w := postJSON("/api/incidents", gin.H{
			"category":    "FLOOD",
			"description": "river overflow",
			"latitude":    123.0,
			"longitude":   10.0,
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.Equal(t, "error", envelope["status"])
	})
}

func TestListIncidentsEndpoint(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{
			"id", "category", "description", "severity", "latitude", "longitude",
			"imagery_url", "verified_status", "is_quick_alert", "reporter_id", "created_at",
		}).
			AddRow(2, "FLOOD", "bridge out", "HIGH", 1.0, 2.0, "", "UNVERIFIED", false, "", time.Now()).
			AddRow(1, "FIRE", "small fire", "LOW", 3.0, 4.0, "", "VERIFIED", false, "", time.Now())
		mock.ExpectQuery(`FROM incidents\s+ORDER BY created_at DESC`).
			WillReturnRows(rows)

		w := get("/api/incidents")
		require.Equal(t, http.StatusOK, w.Code)

		envelope := decodeEnvelope(t, w)
		data := envelope["data"].([]any)
		assert.Len(t, data, 2)
		first := data[0].(map[string]any)
		assert.Equal(t, "FLOOD", first["category"])
	})
}

func TestIncidentMapAggregatesViewport(t *testing.T) {
	it(func() {
		rows := sqlmock.NewRows([]string{"latitude", "longitude"}).
			AddRow(10.001, 20.001).
			AddRow(10.002, 20.002).
			AddRow(10.5, 20.5)
		mock.ExpectQuery(`SELECT latitude, longitude\s+FROM incidents`).
			WithArgs(9.0, 19.0, 11.0, 21.0).
			WillReturnRows(rows)

		w := get("/api/incidents/map?latmin=9&lonmin=19&latmax=11&lonmax=21")
		require.Equal(t, http.StatusOK, w.Code)

		envelope := decodeEnvelope(t, w)
		points := envelope["data"].([]any)
		require.NotEmpty(t, points)

		var total float64
		for _, p := range points {
			total += p.(map[string]any)["count"].(float64)
		}
		assert.Equal(t, float64(3), total)
	})
}

func TestIncidentMapRejectsEmptyViewport(t *testing.T) {
	it(func() {
		w := get("/api/incidents/map?latmin=11&lonmin=19&latmax=9&lonmax=21")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncAccountRejectsUnknownRole(t *testing.T) {
	it(func() {
		w := postJSON("/api/auth/sync", gin.H{"id": "u1", "name": "Ana", "role": "reporter"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncAccountCreatesVolunteer(t *testing.T) {
	it(func() {
		mock.ExpectExec(`INSERT INTO volunteers`).
			WithArgs("u1", "Ana").
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := postJSON("/api/auth/sync", gin.H{"id": "u1", "name": "Ana", "role": "volunteer"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetProfileVolunteerNotFound(t *testing.T) {
	it(func() {
		mock.ExpectQuery(`FROM volunteers v WHERE v.id = \?`).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		w := get("/api/profile/ghost")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCreateResourceDerivesStatus(t *testing.T) {
	it(func() {
		mock.ExpectExec(`INSERT\s+INTO resources`).
			WithArgs("Water bottles", "SUPPLIES", 0, "OUT_OF_STOCK", "", "org-1", false).
			WillReturnResult(sqlmock.NewResult(3, 1))

		w := postJSON("/api/resources", gin.H{
			"item":           "Water bottles",
			"category":       "SUPPLIES",
			"quantity":       0,
			"organizationId": "org-1",
		})

		require.Equal(t, http.StatusCreated, w.Code)
		envelope := decodeEnvelope(t, w)
		data := envelope["data"].(map[string]any)
		assert.Equal(t, "OUT_OF_STOCK", data["status"])
	})
}

func TestCreateResourceRejectsNegativeQuantity(t *testing.T) {
	it(func() {
		w := postJSON("/api/resources", gin.H{
			"item":           "Blankets",
			"quantity":       -5,
			"organizationId": "org-1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateResourceNotFound(t *testing.T) {
	it(func() {
		mock.ExpectExec(`UPDATE resources SET quantity = \?, status = \? WHERE id = \?`).
			WithArgs(40, "AVAILABLE", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM resources WHERE id = \?`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)

		data, _ := json.Marshal(gin.H{"quantity": 40})
		req := httptest.NewRequest(http.MethodPut, "/api/resources/99", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func bearerToken(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "u-1",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func TestAdminRoutesRequireToken(t *testing.T) {
	it(func() {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/approve-ngo/org-1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		envelope := decodeEnvelope(t, w)
		assert.Equal(t, "error", envelope["status"])
	})
}

func TestAdminRoutesForbidNonAdmins(t *testing.T) {
	it(func() {
		for _, role := range []string{"volunteer", "organization"} {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/pending-ngos", nil)
			req.Header.Set("Authorization", bearerToken(t, role))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code, "role %s", role)
		}
	})
}

func TestApproveNGOAsAdmin(t *testing.T) {
	it(func() {
		mock.ExpectExec(`UPDATE organizations SET`).
			WithArgs("+382-20-123", "ops@relief.org", "org-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		data, _ := json.Marshal(gin.H{"officeNumber": "+382-20-123", "publicEmail": "ops@relief.org"})
		req := httptest.NewRequest(http.MethodPost, "/api/admin/approve-ngo/org-1", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", bearerToken(t, "admin"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApproveNGOWithoutBody(t *testing.T) {
	it(func() {
		mock.ExpectExec(`UPDATE organizations SET`).
			WithArgs("", "", "org-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		req := httptest.NewRequest(http.MethodPost, "/api/admin/approve-ngo/org-1", nil)
		req.Header.Set("Authorization", bearerToken(t, "admin"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestApproveNGORejectsMalformedBody(t *testing.T) {
	it(func() {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/approve-ngo/org-1", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", bearerToken(t, "admin"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHealthCheck(t *testing.T) {
	it(func() {
		w := get("/health")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
	})
}
