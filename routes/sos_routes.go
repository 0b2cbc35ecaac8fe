package routes

import (
	shared "campusguard/internal/handlers/shared"
	"campusguard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSOSRoutes sets up routes for SOS alert functionality
func SetupSOSRoutes(r *gin.RouterGroup, jwtSecret string, sosHandler *shared.SOSHandler) {
	sos := r.Group("/sos")
	sos.Use(middleware.AuthRequired(jwtSecret))
	{
		sos.POST("/", sosHandler.CreateAlert)
		sos.GET("/mine", sosHandler.GetMyAlerts)
		sos.GET("/:id", sosHandler.GetAlert)
	}

	// Staff-only alert workflow
	staff := r.Group("/staff/sos")
	staff.Use(middleware.AuthRequired(jwtSecret), middleware.StaffRequired())
	{
		staff.GET("/active", sosHandler.GetActiveAlerts)
		staff.GET("/", sosHandler.ListAlertsByStatus)
		staff.PUT("/:id/acknowledge", sosHandler.AcknowledgeAlert)
		staff.PUT("/:id/resolve", sosHandler.ResolveAlert)
	}
}
