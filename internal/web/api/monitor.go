package api

import (
	"context"
	"net/http"

	"agromonitor/internal/engine"
	"agromonitor/internal/web/middleware"
	webmodels "agromonitor/internal/web/models"

	"github.com/gin-gonic/gin"
)

// Monitor controls the polling loop
type Monitor interface {
	Tick(ctx context.Context) bool
	Reset()
	Status() engine.Status
}

func RegisterMonitorRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, monitor Monitor) {
	group := r.Group("/api/monitor")
	group.Use(middleware.RequireAuth())
	{
		group.GET("/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, monitor.Status())
		})

		group.POST("/poll", func(c *gin.Context) {
			if !monitor.Tick(c.Request.Context()) {
				c.JSON(http.StatusConflict, webmodels.ErrorResponse{Error: "Leitura em andamento"})
				return
			}
			c.JSON(http.StatusOK, monitor.Status())
		})

		group.POST("/reset", func(c *gin.Context) {
			monitor.Reset()
			c.JSON(http.StatusOK, monitor.Status())
		})
	}
}
