package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"statwise-backend/internal/core"
	"statwise-backend/internal/models"
)

// NotificationHandler handles push broadcasts.
type NotificationHandler struct {
	notificationService core.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(ns core.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: ns}
}

// SendPredictionAlert handles POST /api/v1/notifications/prediction-alert.
func (h *NotificationHandler) SendPredictionAlert(c *gin.Context) {
	var req models.PredictionAlertRequest
	// Title and body are validated by the service so the error message matches other callers.
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	// Anonymous callers reach the service, which applies the configured admin policy.
	result, err := h.notificationService.SendPredictionAlert(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
