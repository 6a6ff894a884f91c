package core

import (
	"context"
	"time"

	"firebase.google.com/go/v4/messaging"

	"statwise-backend/internal/models"
)

// Caller is the verified identity behind a request. A nil Caller is anonymous.
type Caller struct {
	UID   string
	Email string
	Name  string
	Admin bool
}

func (c *Caller) authenticated() bool {
	return c != nil && c.UID != ""
}

// Result is the success payload of a callable operation.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func success(message string) *Result {
	return &Result{Status: "success", Message: message}
}

// PaymentService verifies gateway payments and grants tiers.
type PaymentService interface {
	VerifyPayment(ctx context.Context, caller *Caller, req models.VerifyPaymentRequest) (*Result, error)
}

// SweepReport summarises one sweeper run.
type SweepReport struct {
	Downgraded []string `json:"downgraded"`
	// Unreadable lists expired documents that could not be decoded and were left as is.
	Unreadable []string  `json:"unreadable,omitempty"`
	Skipped    bool      `json:"skipped"`
	StartedAt  time.Time `json:"startedAt"`
}

// SweeperService downgrades accounts whose paid tier has expired.
type SweeperService interface {
	Sweep(ctx context.Context) (*SweepReport, error)
}

// NotificationService broadcasts push alerts to paid subscribers.
type NotificationService interface {
	SendPredictionAlert(ctx context.Context, caller *Caller, req models.PredictionAlertRequest) (*Result, error)
}

// EraserService permanently removes an account.
type EraserService interface {
	DeleteAccount(ctx context.Context, caller *Caller) (*Result, error)
}

// UserService manages the caller's own profile.
type UserService interface {
	// Initialize creates the profile on first call and returns it. The bool reports creation.
	Initialize(ctx context.Context, caller *Caller, req models.InitializeProfileRequest) (*models.UserAccount, bool, error)
	GetProfile(ctx context.Context, caller *Caller) (*models.UserAccount, error)
	GetSubscription(ctx context.Context, caller *Caller) (*models.SubscriptionRecord, error)
	ListReferrals(ctx context.Context, caller *Caller) ([]*models.ReferralRelationship, error)
	RegisterDevice(ctx context.Context, caller *Caller, token string) error
	SetNotifications(ctx context.Context, caller *Caller, enabled bool) error
}

// HistoryService records and reads per-user audit entries.
type HistoryService interface {
	Record(ctx context.Context, userID, action, creatorID string) error
	List(ctx context.Context, caller *Caller, limit int) ([]*models.HistoryEntry, error)
}

// IdentityProvider removes identities from the auth backend.
type IdentityProvider interface {
	DeleteUser(ctx context.Context, uid string) error
}

// Pusher delivers multicast push messages. *messaging.Client satisfies it.
type Pusher interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Locker guards a job against concurrent runs across processes.
type Locker interface {
	// TryLock returns ok=false when another holder owns key. release must be called when ok is true.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// Clock returns the current time. Services read time only through it.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
