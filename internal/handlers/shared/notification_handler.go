package handlers

import (
	"campusguard/internal/services"
	"campusguard/internal/utils"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetHistory returns the caller's notification history
func (h *NotificationHandler) GetHistory(c *gin.Context) {
	recipientID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	jobs, total, err := h.notificationService.GetHistory(c.Request.Context(), recipientID, params)
	if err != nil {
		respondSessionError(c, err, "NOTIFICATION_HISTORY_FAILED")
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	}

	utils.SuccessResponseWithMeta(c, "Notifications retrieved successfully", map[string]interface{}{
		"notifications": jobs,
	}, meta)
}

// MarkRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	recipientID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), notificationID, recipientID); err != nil {
		respondSessionError(c, err, "NOTIFICATION_MARK_READ_FAILED")
		return
	}

	utils.SuccessResponse(c, "Notification marked as read", nil)
}

// GetFailedDeliveries is the staff view of partially failed fan-outs
func (h *NotificationHandler) GetFailedDeliveries(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	jobs, total, err := h.notificationService.GetFailed(c.Request.Context(), params)
	if err != nil {
		respondSessionError(c, err, "NOTIFICATION_LIST_FAILED")
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
	}

	utils.SuccessResponseWithMeta(c, "Failed deliveries retrieved successfully", map[string]interface{}{
		"notifications": jobs,
	}, meta)
}
