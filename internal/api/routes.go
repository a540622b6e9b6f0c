package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/voicechat/domain/entities"
	"github.com/satriahrh/voicechat/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, defaults entities.VoiceSettings, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "voicechat-server",
			Clients: hub.ClientCount(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/languages", getLanguages)
	v1.GET("/settings/default", func(c echo.Context) error {
		return c.JSON(http.StatusOK, defaults)
	})
	v1.POST("/settings/validate", validateSettings)

	// One session controller per connection
	e.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(hub, c, logger)
	})
}

func getLanguages(c echo.Context) error {
	return c.JSON(http.StatusOK, LanguagesResponse{Languages: entities.SupportedLanguages})
}

func validateSettings(c echo.Context) error {
	var settings entities.VoiceSettings
	if err := c.Bind(&settings); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if err := settings.Validate(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_settings",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, settings)
}
