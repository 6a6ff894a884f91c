package db

import (
	"context"
	"time"

	"statwise-backend/internal/models"
)

// UserRepository defines the non-transactional user document operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.UserAccount, error)
	// FindNotifiable returns accounts on one of tiers that opted into notifications.
	FindNotifiable(ctx context.Context, tiers []models.Tier) ([]*models.UserAccount, error)
	SetNotifications(ctx context.Context, userID string, enabled bool) error
	AddDeviceToken(ctx context.Context, userID, token string) error
	RemoveDeviceTokens(ctx context.Context, userID string, tokens []string) error
}

// HistoryRepository stores the per-user audit trail.
type HistoryRepository interface {
	Append(ctx context.Context, userID string, entry models.HistoryEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.HistoryEntry, error)
}

// SubscriptionRepository reads the per-user transaction log.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.SubscriptionRecord, error)
}

// ReferralRepository reads referral codes and relationships.
type ReferralRepository interface {
	ListByReferrer(ctx context.Context, referrerID string) ([]*models.ReferralRelationship, error)
}

// LedgerStore applies multi-document mutations atomically.
type LedgerStore interface {
	// RunTransaction runs fn in a transaction. fn may be invoked more than once
	// on contention, so it must not keep state between attempts. All reads
	// through tx must happen before the first write.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	// DeleteUserData removes the user's history, profile, subscription record
	// and referral code. Profile, record and code go in one atomic commit.
	DeleteUserData(ctx context.Context, userID, referralCode string) error
}

// LedgerTx is the transactional view handed to LedgerStore.RunTransaction.
type LedgerTx interface {
	GetUser(userID string) (*models.UserAccount, error)
	// ExpiredUsers scans up to limit documents whose tierExpiry is at or before
	// now. Documents that fail to decode are skipped and their IDs returned in unreadable.
	ExpiredUsers(now time.Time, limit int) (users []*models.UserAccount, unreadable []string, err error)
	GetReferral(referredID string) (*models.ReferralRelationship, error)
	GetReferralCode(code string) (*models.ReferralCode, error)
	PaymentApplied(transactionID string) (bool, error)

	CreateUser(user *models.UserAccount) error
	// SetTier writes tier, tierExpiry and autoRenew, creating the document if needed.
	SetTier(user *models.UserAccount) error
	SaveReferral(rel *models.ReferralRelationship) error
	SaveReferralCode(code *models.ReferralCode) error
	AppendTransaction(userID string, entry models.TransactionEntry) error
	AppendHistory(userID string, entry models.HistoryEntry) error
	MarkPaymentApplied(marker models.PaymentMarker) error
}
