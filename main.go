package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"linkrelief/config"
	"linkrelief/database"
	"linkrelief/handlers"
	"linkrelief/middleware"
	"linkrelief/rabbitmq"
	ws "linkrelief/websocket"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment variables")
	}

	cfg := config.Load()

	log.SetHandler(text.New(os.Stderr))
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	svc := database.NewService(db)

	hub := ws.NewHub()
	go hub.Run()

	var publisher handlers.IncidentPublisher
	if cfg.AMQPURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Warnf("RabbitMQ unavailable, incident fanout disabled: %v", err)
		} else {
			defer p.Close()
			publisher = p
		}
	}

	h := handlers.NewHandlers(svc, hub, publisher, cfg.MaxUploadBytes)
	router := setupRouter(cfg, h)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func setupRouter(cfg *config.Config, h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	if len(cfg.TrustedProxies) > 0 {
		if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warnf("Failed to set trusted proxies: %v", err)
		}
	}

	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RateLimitMiddleware(20, 40))

	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		// Public surface used by the field client and dashboards
		api.POST("/incidents", h.CreateIncident)
		api.GET("/incidents", h.ListIncidents)
		api.GET("/incidents/map", h.IncidentMap)
		api.GET("/ws/incidents", h.IncidentWebSocket)
		api.GET("/organizations", h.ListOrganizations)
		api.GET("/teams", h.Teams)
		api.GET("/resources", h.ListResources)

		// Authenticated profile and inventory management
		auth := api.Group("")
		auth.Use(middleware.AuthMiddleware(cfg.JWTSecret))
		{
			auth.POST("/auth/sync", h.SyncAccount)
			auth.GET("/profile/:id", h.GetProfile)
			auth.PUT("/organization/:id", h.UpdateOrganization)
			auth.PUT("/volunteer/:id", h.UpdateVolunteer)
			auth.GET("/organization/:id/volunteers", h.OrganizationVolunteers)
			auth.POST("/organization/:id/verify-docs", h.SubmitOrganizationDocs)
			auth.POST("/volunteer/:id/verify-docs", h.SubmitVolunteerDocs)
			auth.POST("/resources", h.CreateResource)
			auth.PUT("/resources/:id", h.UpdateResource)
			auth.DELETE("/resources/:id", h.DeleteResource)

			ngo := auth.Group("/ngo")
			{
				ngo.GET("/:id/volunteers", h.NGOVolunteers)
				ngo.POST("/verify-volunteer/:id", h.VerifyVolunteerByNGO)
			}

			admin := auth.Group("/admin")
			admin.Use(middleware.RequireRole("admin"))
			{
				admin.GET("/pending-ngos", h.PendingNGOs)
				admin.GET("/pending-independents", h.PendingIndependents)
				admin.GET("/organizations", h.AdminOrganizations)
				admin.GET("/volunteers", h.AdminVolunteers)
				admin.POST("/approve-ngo/:id", h.ApproveNGO)
				admin.POST("/verify/:id", h.VerifyOrganization)
				admin.POST("/verify-volunteer/:id", h.VerifyVolunteerByAdmin)
			}
		}
	}

	return router
}
