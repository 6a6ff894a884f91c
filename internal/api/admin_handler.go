package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"statwise-backend/internal/core"
)

// AdminHandler exposes operational endpoints.
type AdminHandler struct {
	sweeperService core.SweeperService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ss core.SweeperService) *AdminHandler {
	return &AdminHandler{sweeperService: ss}
}

// RunSweep handles POST /api/v1/admin/sweep.
// It runs one expiry sweep synchronously, sharing the scheduler's lock.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	report, err := h.sweeperService.Sweep(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	// The report lists every downgraded account plus any it could not read.
	message := fmt.Sprintf("Downgraded %d expired subscriptions.", len(report.Downgraded))
	if report.Skipped { // Another instance or the scheduler holds the lock
		message = "A sweep is already running."
	}
	c.JSON(http.StatusOK, SuccessResponse{Status: "success", Message: message, Data: report})
}
