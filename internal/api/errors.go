package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"statwise-backend/internal/core"
	"statwise-backend/internal/middleware"
)

// statusForCode maps a service error classification to an HTTP status.
func statusForCode(code core.Code) int {
	switch code {
	case core.CodeUnauthenticated:
		return http.StatusUnauthorized
	case core.CodeInvalidArgument:
		return http.StatusBadRequest
	case core.CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case core.CodePermissionDenied:
		return http.StatusForbidden
	case core.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the error envelope. Internal causes are attached to
// the Gin context for the request logger but never sent to the client.
func writeError(c *gin.Context, err error) {
	var coreErr *core.Error
	// Anything the services did not classify is treated as an internal failure.
	if !errors.As(err, &coreErr) {
		coreErr = &core.Error{Code: core.CodeInternal, Message: "Internal Server Error", Err: err}
	}
	_ = c.Error(err) // Picked up by RequestLogger as gin_errors

	body := ErrorBody{Status: string(coreErr.Code), Message: coreErr.Message, Details: coreErr.Details}
	if coreErr.Code == core.CodeInternal {
		// Internal details may hold store or gateway responses.
		body.Details = nil
	}
	c.AbortWithStatusJSON(statusForCode(coreErr.Code), ErrorResponse{Error: body})
}

// writeBindError answers a request whose JSON body could not be decoded.
func writeBindError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
		Status:  string(core.CodeInvalidArgument),
		Message: "Invalid request body.",
		Details: err.Error(),
	}})
}

// callerFrom builds the caller identity populated by the auth middleware. It
// returns nil for anonymous requests.
func callerFrom(c *gin.Context) *core.Caller {
	uid := c.GetString(middleware.ContextUserID)
	if uid == "" {
		return nil
	}
	return &core.Caller{
		UID:   uid,
		Email: c.GetString(middleware.ContextUserEmail),
		Name:  c.GetString(middleware.ContextDisplayName),
		Admin: c.GetBool(middleware.ContextIsAdmin),
	}
}
