package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"drainsentry-backend/internal/config"
)

func NewRouter(cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(h.logger))

	api := r.Group(cfg.API.BasePath)
	{
		// sensors report without a user token; the device id scopes the write
		api.POST("/sensor-data", h.PostSensorData)

		authed := api.Group("", AuthMiddleware(h.store, h.logger))
		{
			authed.GET("/devices", h.ListDevices)
			authed.POST("/devices", h.CreateDevice)
			authed.PUT("/devices/:id", h.UpdateDevice)
			authed.DELETE("/devices/:id", h.DeleteDevice)

			authed.GET("/alerts", h.GetAlerts)
			authed.GET("/notifications", h.GetNotifications)

			authed.POST("/ai/detect-trash", h.DetectTrash)
			authed.POST("/ai/health-report", h.HealthReport)

			authed.GET("/ws", h.ServeWS)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
