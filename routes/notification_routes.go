package routes

import (
	shared "campusguard/internal/handlers/shared"
	"campusguard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupNotificationRoutes sets up routes for notification history
func SetupNotificationRoutes(r *gin.RouterGroup, jwtSecret string, notificationHandler *shared.NotificationHandler) {
	notifications := r.Group("/notifications")
	notifications.Use(middleware.AuthRequired(jwtSecret))
	{
		notifications.GET("/", notificationHandler.GetHistory)
		notifications.PUT("/:id/read", notificationHandler.MarkRead)
	}

	staff := r.Group("/staff/notifications")
	staff.Use(middleware.AuthRequired(jwtSecret), middleware.StaffRequired())
	{
		staff.GET("/failed", notificationHandler.GetFailedDeliveries)
	}
}
