package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ServiceName is reported by the health check
const ServiceName = "kari-transcriptor"

// InitRoutes initializes all API routes. staticDir may be empty.
func InitRoutes(e *echo.Echo, h *Handler, staticDir string) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: ServiceName,
		})
	})

	e.POST("/upload", h.Upload)

	// Progress streams
	e.GET("/transcribe/:filename", h.TranscribeSSE)
	e.GET("/ws/transcribe/:filename", h.TranscribeWebSocket)

	if staticDir != "" {
		e.Static("/", staticDir)
	}
}
