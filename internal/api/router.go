package api

import (
	"github.com/gin-gonic/gin"
	"github.com/marcote/comphawk/internal/api/handler"
	"github.com/marcote/comphawk/internal/api/middleware"
	"github.com/marcote/comphawk/internal/config"
	"github.com/marcote/comphawk/internal/logger"
	"github.com/marcote/comphawk/internal/repository"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	jobs *repository.JobRepository,
	evidence *repository.EvidenceRepository,
	cfg *config.Config,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	jobHandler := handler.NewJobHandler(jobs)
	evidenceHandler := handler.NewEvidenceHandler(evidence)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Comp-collection jobs
		v1.POST("/comp-jobs", jobHandler.CreateJob)
		v1.GET("/comp-jobs", jobHandler.ListJobs)
		v1.GET("/comp-jobs/:id", jobHandler.GetJob)

		// Attached evidence
		v1.GET("/cards/:id/evidence", evidenceHandler.ListByCard)
	}

	return r
}
