package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"statwise-backend/internal/core"
	"statwise-backend/internal/models"
)

// UserHandler handles the caller's own account endpoints.
type UserHandler struct {
	userService    core.UserService
	historyService core.HistoryService
	eraserService  core.EraserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, hs core.HistoryService, es core.EraserService) *UserHandler {
	return &UserHandler{userService: us, historyService: hs, eraserService: es}
}

// InitializeProfile handles POST /api/v1/users/initialize. It is called after
// client-side signup or login to make sure the profile exists.
func (h *UserHandler) InitializeProfile(c *gin.Context) {
	var req models.InitializeProfileRequest
	// The body is optional: username and referral code both have defaults.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeBindError(c, err)
			return
		}
	}

	user, created, err := h.userService.Initialize(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	// 201 on first initialization, 200 when the profile already existed.
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, ProfileResponse{User: user, Created: created})
}

// GetCurrentUserProfile handles GET /api/v1/users/me.
func (h *UserHandler) GetCurrentUserProfile(c *gin.Context) {
	user, err := h.userService.GetProfile(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user) // Device tokens are omitted by the model's JSON tags
}

// ListHistory handles GET /api/v1/users/me/history?limit=N.
func (h *UserHandler) ListHistory(c *gin.Context) {
	limit := 0 // Zero lets the service apply its default page size
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, &core.Error{Code: core.CodeInvalidArgument, Message: "limit must be a positive integer."})
			return
		}
		limit = n
	}

	entries, err := h.historyService.List(c.Request.Context(), callerFrom(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Entries: entries})
}

// GetSubscription handles GET /api/v1/users/me/subscription.
func (h *UserHandler) GetSubscription(c *gin.Context) {
	record, err := h.userService.GetSubscription(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListReferrals handles GET /api/v1/users/me/referrals.
func (h *UserHandler) ListReferrals(c *gin.Context) {
	rels, err := h.userService.ListReferrals(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ReferralsResponse{Referrals: rels, Count: len(rels)})
}

// RegisterDevice handles POST /api/v1/users/me/devices.
func (h *UserHandler) RegisterDevice(c *gin.Context) {
	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if err := h.userService.RegisterDevice(c.Request.Context(), callerFrom(c), req.Token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Status: "success", Message: "Device registered."})
}

// SetNotifications handles PUT /api/v1/users/me/notifications.
func (h *UserHandler) SetNotifications(c *gin.Context) {
	var req models.NotificationPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	// Enabled is a pointer marked required, so binding has already rejected a missing value.
	if err := h.userService.SetNotifications(c.Request.Context(), callerFrom(c), *req.Enabled); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Status: "success", Message: "Notification preference updated."})
}

// DeleteAccount handles DELETE /api/v1/users/me and POST /api/v1/users/delete.
// Both routes erase the caller's data and then the Firebase Auth account.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	result, err := h.eraserService.DeleteAccount(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
