package models

import "github.com/shopspring/decimal"

// VerifyPaymentRequest is the body of the payment verification callable.
type VerifyPaymentRequest struct {
	TransactionID FlexibleString  `json:"transactionId"`
	TxRef         string          `json:"tx_ref"`
	Tier          string          `json:"tier"`
	Period        string          `json:"period"`
	Amount        decimal.Decimal `json:"amount"`
}

// PredictionAlertRequest is the body of the notification dispatcher callable.
type PredictionAlertRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	MatchURL string `json:"matchUrl,omitempty"`
}

// InitializeProfileRequest is sent by the client right after signup or login.
type InitializeProfileRequest struct {
	Username     string `json:"username,omitempty"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// RegisterDeviceRequest registers an FCM token for the caller.
type RegisterDeviceRequest struct {
	Token string `json:"token" binding:"required"`
}

// NotificationPreferenceRequest toggles the caller's push opt-in.
// Pointer so that an explicit false is distinguishable from a missing field.
type NotificationPreferenceRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}
