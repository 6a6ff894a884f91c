package middleware

// ErrorBody mirrors api.ErrorBody. It is redeclared here because api imports
// this package.
type ErrorBody struct {
	Status  string `json:"status"`  // Machine-readable code, e.g. "unauthenticated"
	Message string `json:"message"` // Human-readable explanation
}

// ErrorResponse is the envelope for every error returned by the service.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// errorResponse builds the envelope used by the abort paths in this package.
func errorResponse(status, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Status: status, Message: message}}
}
