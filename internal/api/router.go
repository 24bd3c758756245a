package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"investmon/internal/service"
)

func NewRouter(svc *service.Service) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())

	// Global health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ok",
			Timestamp: formatTime(time.Now()),
		})
	})

	monitorHandler := NewMonitorHandler(svc)
	configHandler := NewConfigHandler(svc)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/config", configHandler.GetConfig)
		apiGroup.POST("/config", configHandler.SetConfig)

		settingsGroup := apiGroup.Group("/settings")
		{
			settingsGroup.GET("/style", configHandler.GetStyle)
			settingsGroup.POST("/style", configHandler.SetStyle)
		}

		monitorGroup := apiGroup.Group("/monitor")
		{
			monitorGroup.GET("/stream", monitorHandler.Stream)
			monitorGroup.GET("/snapshot", monitorHandler.Snapshot)
			monitorGroup.GET("/ping/:name", monitorHandler.Ping)
		}
	}

	return r
}
