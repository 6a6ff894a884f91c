package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"statwise-backend/internal/core"
	"statwise-backend/internal/models"
)

// PaymentHandler handles payment verification.
type PaymentHandler struct {
	paymentService core.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(ps core.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// VerifyPayment handles POST /api/v1/payments/verify.
// The body names the gateway transaction and the tier the client paid for.
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	// transactionId and amount accept both JSON strings and numbers.
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	// The service checks authentication itself; an anonymous caller is passed as nil.
	result, err := h.paymentService.VerifyPayment(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		// Gateway rejections come back as failed-precondition with the gateway status in details.
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
