package models

import "time"

// Period is the billing cycle a payment buys.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// Valid reports whether p is a supported billing period.
func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodMonthly
}

// TransactionEntry is one verified payment appended to a SubscriptionRecord.
type TransactionEntry struct {
	Amount        float64   `json:"amount" firestore:"amount"`
	Currency      string    `json:"currency" firestore:"currency"`
	Description   string    `json:"description" firestore:"description"`
	Status        string    `json:"status" firestore:"status"`
	TransactionID string    `json:"transactionId" firestore:"transactionId"`
	TxRef         string    `json:"tx_ref" firestore:"tx_ref"`
	Tier          Tier      `json:"tier" firestore:"tier"`
	Period        Period    `json:"period" firestore:"period"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
}

// SubscriptionRecord is the per-user append-only transaction log.
type SubscriptionRecord struct {
	UserID       string             `json:"userId" firestore:"-"`
	Transactions []TransactionEntry `json:"transactions" firestore:"transactions"`
}

// HistoryEntry is an audit line in users/{id}/history.
type HistoryEntry struct {
	ID        string    `json:"id" firestore:"-"`
	Action    string    `json:"action" firestore:"action"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	CreatorID string    `json:"creatorId,omitempty" firestore:"creatorId,omitempty"`
}

// ReferralRelationship links a referred user (document ID) to the user who referred them.
type ReferralRelationship struct {
	ReferrerID    string     `json:"referrerId" firestore:"referrerId"`
	ReferredID    string     `json:"referredId" firestore:"referredId"`
	ReferralCode  string     `json:"referralCode" firestore:"referralCode"`
	RewardClaimed bool       `json:"rewardClaimed" firestore:"rewardClaimed"`
	RewardAmount  float64    `json:"rewardAmount" firestore:"rewardAmount"`
	CreatedAt     time.Time  `json:"createdAt" firestore:"createdAt"`
	RewardedAt    *time.Time `json:"rewardedAt,omitempty" firestore:"rewardedAt,omitempty"`
}

// ReferralCode maps a shareable code (document ID) to its owner.
type ReferralCode struct {
	Code      string    `json:"code" firestore:"-"`
	UserID    string    `json:"userId" firestore:"userId"`
	Username  string    `json:"username" firestore:"username"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// PaymentMarker records that a gateway transaction has already been applied.
type PaymentMarker struct {
	TransactionID string    `json:"transactionId" firestore:"-"`
	UserID        string    `json:"userId" firestore:"userId"`
	TxRef         string    `json:"tx_ref" firestore:"tx_ref"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
}
