package routes

import (
	shared "campusguard/internal/handlers/shared"
	"campusguard/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes sets up routes for safety session functionality
func SetupSessionRoutes(r *gin.RouterGroup, jwtSecret string, sessionHandler *shared.SessionHandler) {
	sessions := r.Group("/sessions")
	sessions.Use(middleware.AuthRequired(jwtSecret))
	{
		// Lifecycle
		sessions.POST("/", sessionHandler.StartSession)
		sessions.GET("/active", sessionHandler.GetActiveSession)
		sessions.GET("/history", sessionHandler.GetSessionHistory)
		sessions.GET("/:id", sessionHandler.GetSession)
		sessions.PUT("/:id/complete", sessionHandler.CompleteSession)
		sessions.PUT("/:id/cancel", sessionHandler.CancelSession)

		// Check-ins
		sessions.POST("/:id/check-in", sessionHandler.RespondCheckIn)
		sessions.GET("/:id/check-ins", sessionHandler.GetCheckIns)

		// Live location
		sessions.POST("/:id/location", sessionHandler.PublishLocation)

		// Sharing grants
		sessions.POST("/:id/grants", sessionHandler.CreateGrant)
		sessions.DELETE("/:id/grants/:token", sessionHandler.RevokeGrant)
	}

	// Staff dashboard over sessions
	staff := r.Group("/staff/sessions")
	staff.Use(middleware.AuthRequired(jwtSecret), middleware.StaffRequired())
	{
		staff.GET("/", sessionHandler.ListSessionsByStatus)
	}
}
