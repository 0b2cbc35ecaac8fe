package handlers

import (
	"campusguard/internal/models"
	"campusguard/internal/services"
	"campusguard/internal/utils"

	"github.com/gin-gonic/gin"
)

type SOSHandler struct {
	sosService services.SOSService
}

func NewSOSHandler(sosService services.SOSService) *SOSHandler {
	return &SOSHandler{
		sosService: sosService,
	}
}

// CreateAlert raises an SOS alert for the caller
func (h *SOSHandler) CreateAlert(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request models.CreateSOSRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	alert, err := h.sosService.CreateAlert(c.Request.Context(), ownerID, &request)
	if err != nil {
		respondSessionError(c, err, "SOS_CREATE_FAILED")
		return
	}

	utils.CreatedResponse(c, "SOS alert created", alert)
}

// GetAlert returns one SOS alert
func (h *SOSHandler) GetAlert(c *gin.Context) {
	alertID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	alert, err := h.sosService.GetAlert(c.Request.Context(), alertID)
	if err != nil {
		respondSessionError(c, err, "SOS_FETCH_FAILED")
		return
	}

	utils.SuccessResponse(c, "Alert retrieved successfully", alert)
}

// GetActiveAlerts is the staff view of open emergencies
func (h *SOSHandler) GetActiveAlerts(c *gin.Context) {
	alerts, err := h.sosService.GetActiveAlerts(c.Request.Context())
	if err != nil {
		respondSessionError(c, err, "SOS_LIST_FAILED")
		return
	}

	utils.SuccessResponse(c, "Active alerts retrieved successfully", map[string]interface{}{
		"alerts": alerts,
	})
}

// ListAlertsByStatus pages over alerts in a given lifecycle state
func (h *SOSHandler) ListAlertsByStatus(c *gin.Context) {
	status := models.SOSStatus(c.DefaultQuery("status", string(models.SOSStatusActive)))

	params := utils.GetPaginationParams(c)
	alerts, total, err := h.sosService.GetAlertsByStatus(c.Request.Context(), status, params)
	if err != nil {
		respondSessionError(c, err, "SOS_LIST_FAILED")
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	}

	utils.SuccessResponseWithMeta(c, "Alerts retrieved successfully", map[string]interface{}{
		"alerts": alerts,
	}, meta)
}

// GetMyAlerts returns the caller's own alert history
func (h *SOSHandler) GetMyAlerts(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	alerts, total, err := h.sosService.GetAlertsByOwner(c.Request.Context(), ownerID, params)
	if err != nil {
		respondSessionError(c, err, "SOS_LIST_FAILED")
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	}

	utils.SuccessResponseWithMeta(c, "Alerts retrieved successfully", map[string]interface{}{
		"alerts": alerts,
	}, meta)
}

// AcknowledgeAlert marks an alert as being handled by the calling staff member
func (h *SOSHandler) AcknowledgeAlert(c *gin.Context) {
	alertID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	alert, err := h.sosService.AcknowledgeAlert(c.Request.Context(), alertID, staffID)
	if err != nil {
		respondSessionError(c, err, "SOS_ACK_FAILED")
		return
	}

	utils.SuccessResponse(c, "Alert acknowledged", alert)
}

// ResolveAlert closes an alert with a resolution note
func (h *SOSHandler) ResolveAlert(c *gin.Context) {
	alertID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	staffID, ok := currentUserID(c)
	if !ok {
		return
	}

	var request models.ResolveSOSRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	alert, err := h.sosService.ResolveAlert(c.Request.Context(), alertID, staffID, &request)
	if err != nil {
		respondSessionError(c, err, "SOS_RESOLVE_FAILED")
		return
	}

	utils.SuccessResponse(c, "Alert resolved", alert)
}
