package api

import (
	"net/http"

	"agromonitor/internal/models"
	"agromonitor/internal/web/middleware"
	webmodels "agromonitor/internal/web/models"

	"github.com/gin-gonic/gin"
)

// NotificationLog is the panel's view of the notification log
type NotificationLog interface {
	Open() []models.NotificationEntry
	Unread() int
	MarkAllRead()
	Clear()
}

func RegisterNotificationRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, log NotificationLog) {
	group := r.Group("/api/notificacoes")
	group.Use(middleware.RequireAuth())
	{
		// Opening the panel
		group.GET("", func(c *gin.Context) {
			entries := log.Open()
			c.JSON(http.StatusOK, webmodels.NotificationsResponse{
				Notifications: entries,
				Unread:        log.Unread(),
			})
		})

		group.GET("/unread", func(c *gin.Context) {
			c.JSON(http.StatusOK, webmodels.UnreadResponse{Unread: log.Unread()})
		})

		group.POST("/read", func(c *gin.Context) {
			log.MarkAllRead()
			c.Status(http.StatusNoContent)
		})

		group.DELETE("", func(c *gin.Context) {
			log.Clear()
			c.Status(http.StatusNoContent)
		})
	}
}
