package api

import (
	"helix/internal/server/config"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}))
	e.Use(RequestLogger())

	// Rate limiter on the upload endpoint only
	uploadLimiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Health & stats
	e.GET("/health", handler.HandleHealth)
	e.GET("/api/stats", handler.HandleStats)

	// Ingestion
	e.POST("/upload", handler.HandleUpload, uploadLimiter.Middleware())
	e.GET("/validate/:filename", handler.HandleValidateFilename)

	// Records
	e.GET("/files", handler.HandleListFiles)
	e.GET("/files/:id", handler.HandleGetFile)
	e.POST("/files/:id/status", handler.HandleUpdateStatus)
	e.DELETE("/files/:id", handler.HandleDeleteFile)

	return e
}
