// Package api is the HTTP front door of the occupancy proxy.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SetupRoutes sets up the API routes
func SetupRoutes(handler *Handler, allowedOrigins []string, logger zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(RequestID())
	router.Use(Recovery(logger))
	router.Use(CORS(allowedOrigins))
	router.Use(Logger(logger))
	router.Use(Metrics())

	router.GET("/", handler.Root)
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", handler.Metrics)

	api := router.Group("/api")
	{
		api.GET("/session", handler.GetSession)
		api.POST("/validate_session", handler.ValidateSession)
		api.POST("/reservations", handler.GetReservations)
		api.POST("/download_excel", handler.DownloadExcel)
	}

	return router
}
