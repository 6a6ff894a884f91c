package models

import "time"

// UserAccount is the ledger's profile document for one identity.
// TierExpiry is nil exactly when Tier is TierFree.
type UserAccount struct {
	ID            string     `json:"id" firestore:"-"` // Firebase Auth UID, also the document ID
	Username      string     `json:"username,omitempty" firestore:"username,omitempty"`
	Email         string     `json:"email,omitempty" firestore:"email,omitempty"`
	Tier          Tier       `json:"tier" firestore:"tier"`
	TierExpiry    *time.Time `json:"tierExpiry" firestore:"tierExpiry"`
	AutoRenew     bool       `json:"autoRenew" firestore:"autoRenew"`
	ReferredBy    string     `json:"referredBy,omitempty" firestore:"referredBy,omitempty"`
	ReferralCode  string     `json:"referralCode,omitempty" firestore:"referralCode,omitempty"`
	Notifications bool       `json:"notifications" firestore:"notifications"`
	DeviceTokens  []string   `json:"-" firestore:"fcmTokens,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

// HasActivePaidTier reports whether the account holds a paid tier that has not expired at now.
func (u *UserAccount) HasActivePaidTier(now time.Time) bool {
	return u.Tier.IsPaid() && u.TierExpiry != nil && u.TierExpiry.After(now)
}

// IsExpired reports whether a paid tier has reached its expiry at now.
func (u *UserAccount) IsExpired(now time.Time) bool {
	return u.Tier.IsPaid() && u.TierExpiry != nil && !u.TierExpiry.After(now)
}

// Downgrade resets the account to the Free tier.
func (u *UserAccount) Downgrade() {
	u.Tier = TierFree
	u.TierExpiry = nil
	u.AutoRenew = false
}
