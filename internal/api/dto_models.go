package api

import "statwise-backend/internal/models"

// ErrorBody carries the classification and message of a failed call.
type ErrorBody struct {
	Status  string      `json:"status"`            // core.Code, e.g. "failed-precondition"
	Message string      `json:"message"`           // Safe to show to the end user
	Details interface{} `json:"details,omitempty"` // Never set for internal errors
}

// ErrorResponse is the envelope for every error returned by the API.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ProfileResponse wraps the caller's profile on initialize.
type ProfileResponse struct {
	User    *models.UserAccount `json:"user"`
	Created bool                `json:"created"`
}

// HistoryResponse lists history entries, newest first.
type HistoryResponse struct {
	Entries []*models.HistoryEntry `json:"entries"`
}

// ReferralsResponse lists the caller's referrals.
type ReferralsResponse struct {
	Referrals []*models.ReferralRelationship `json:"referrals"`
	Count     int                            `json:"count"`
}
