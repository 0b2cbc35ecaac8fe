package handlers

import (
	"errors"
	"net/http"

	"campusguard/internal/models"
	"campusguard/internal/services"
	"campusguard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionHandler struct {
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// StartSession begins a monitored safety session for the caller
func (h *SessionHandler) StartSession(c *gin.Context) {
	var request models.StartSessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.StartSession(c.Request.Context(), ownerID, &request)
	if err != nil {
		respondSessionError(c, err, "SESSION_START_FAILED")
		return
	}

	utils.CreatedResponse(c, "Safety session started", session)
}

// GetSession returns one session, subject to view access
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	viewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(c.Request.Context(), sessionID, viewerID)
	if err != nil {
		respondSessionError(c, err, "SESSION_FETCH_FAILED")
		return
	}

	utils.SuccessResponse(c, "Session retrieved successfully", session)
}

// GetActiveSession returns the caller's current non-terminal session
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetActiveSession(c.Request.Context(), ownerID)
	if err != nil {
		respondSessionError(c, err, "SESSION_FETCH_FAILED")
		return
	}

	utils.SuccessResponse(c, "Active session retrieved successfully", session)
}

// GetSessionHistory returns the caller's past sessions
func (h *SessionHandler) GetSessionHistory(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	sessions, total, err := h.sessionService.GetSessionHistory(c.Request.Context(), ownerID, params)
	if err != nil {
		respondSessionError(c, err, "SESSION_HISTORY_FAILED")
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	}

	utils.SuccessResponseWithMeta(c, "Session history retrieved successfully", map[string]interface{}{
		"sessions": sessions,
	}, meta)
}

// ListSessionsByStatus is the staff dashboard view over sessions
func (h *SessionHandler) ListSessionsByStatus(c *gin.Context) {
	status := models.SessionStatus(c.DefaultQuery("status", string(models.SessionStatusEmergency)))

	params := utils.GetPaginationParams(c)
	sessions, total, err := h.sessionService.GetSessionsByStatus(c.Request.Context(), status, params)
	if err != nil {
		respondSessionError(c, err, "SESSION_LIST_FAILED")
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	}

	utils.SuccessResponseWithMeta(c, "Sessions retrieved successfully", map[string]interface{}{
		"sessions": sessions,
	}, meta)
}

// CompleteSession closes the caller's session as safely finished
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.CompleteSession(c.Request.Context(), sessionID, ownerID)
	if err != nil {
		respondSessionError(c, err, "SESSION_COMPLETE_FAILED")
		return
	}

	utils.SuccessResponse(c, "Session completed successfully", session)
}

// CancelSession closes the caller's session without completion semantics
func (h *SessionHandler) CancelSession(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	session, err := h.sessionService.CancelSession(c.Request.Context(), sessionID, ownerID)
	if err != nil {
		respondSessionError(c, err, "SESSION_CANCEL_FAILED")
		return
	}

	utils.SuccessResponse(c, "Session cancelled successfully", session)
}

// RespondCheckIn records the caller's answer to a pending safety prompt
func (h *SessionHandler) RespondCheckIn(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request models.CheckInResponseRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	session, err := h.sessionService.RespondCheckIn(c.Request.Context(), sessionID, ownerID, &request)
	if err != nil {
		respondSessionError(c, err, "CHECK_IN_FAILED")
		return
	}

	utils.SuccessResponse(c, "Check-in recorded", session)
}

// GetCheckIns lists a session's check-in records
func (h *SessionHandler) GetCheckIns(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	viewerID, ok := currentUserID(c)
	if !ok {
		return
	}

	checkIns, err := h.sessionService.GetCheckIns(c.Request.Context(), sessionID, viewerID)
	if err != nil {
		respondSessionError(c, err, "CHECK_IN_LIST_FAILED")
		return
	}

	utils.SuccessResponse(c, "Check-ins retrieved successfully", map[string]interface{}{
		"check_ins": checkIns,
	})
}

// PublishLocation appends a live location point to the caller's session
func (h *SessionHandler) PublishLocation(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request models.PublishLocationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if err := h.sessionService.PublishLocation(c.Request.Context(), sessionID, ownerID, &request); err != nil {
		respondSessionError(c, err, "LOCATION_PUBLISH_FAILED")
		return
	}

	utils.SuccessResponse(c, "Location published", nil)
}

// CreateGrant shares the caller's live location with another user
func (h *SessionHandler) CreateGrant(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request models.CreateGrantRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	grant, err := h.sessionService.CreateGrant(c.Request.Context(), sessionID, ownerID, &request)
	if err != nil {
		respondSessionError(c, err, "GRANT_CREATE_FAILED")
		return
	}

	utils.CreatedResponse(c, "Sharing grant created", grant)
}

// RevokeGrant tombstones a sharing grant by token
func (h *SessionHandler) RevokeGrant(c *gin.Context) {
	sessionID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	token := c.Param("token")
	if token == "" {
		utils.BadRequestResponse(c, "Grant token required")
		return
	}

	if err := h.sessionService.RevokeGrant(c.Request.Context(), sessionID, ownerID, token); err != nil {
		respondSessionError(c, err, "GRANT_REVOKE_FAILED")
		return
	}

	utils.SuccessResponse(c, "Sharing grant revoked", nil)
}

// Shared helpers

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	userID, ok := raw.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, false
	}

	return userID, true
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name)
		return primitive.NilObjectID, false
	}
	return id, true
}

func respondSessionError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, models.ErrSessionConflict):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, models.ErrSessionNotFound):
		utils.NotFoundResponse(c, "Session")
	case errors.Is(err, models.ErrAlertNotFound):
		utils.NotFoundResponse(c, "Alert")
	case errors.Is(err, models.ErrCheckInNotFound):
		utils.NotFoundResponse(c, "Check-in")
	case errors.Is(err, models.ErrUserNotFound):
		utils.NotFoundResponse(c, "User")
	case errors.Is(err, models.ErrGrantNotFound):
		utils.ForbiddenResponse(c)
	case errors.Is(err, models.ErrNotSessionOwner):
		utils.ForbiddenResponse(c)
	case errors.Is(err, models.ErrSessionClosed),
		errors.Is(err, models.ErrNoPendingCheckIn),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrGrantExpired):
		utils.ErrorResponse(c, http.StatusUnprocessableEntity, "INVALID_STATE", err.Error())
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}
