package core

import (
	"context"
	"errors"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"

	"statwise-backend/internal/db"
	"statwise-backend/internal/metrics"
)

// eraserService implements the EraserService interface.
type eraserService struct {
	userRepo db.UserRepository
	ledger   db.LedgerStore
	identity IdentityProvider
	logger   *zap.Logger
	// identityGone reports an identity that was already removed by an earlier attempt.
	identityGone func(error) bool
}

// NewEraserService creates a new EraserService instance.
func NewEraserService(userRepo db.UserRepository, ledger db.LedgerStore, identity IdentityProvider, logger *zap.Logger) EraserService {
	return &eraserService{
		userRepo:     userRepo,
		ledger:       ledger,
		identity:     identity,
		logger:       logger,
		identityGone: auth.IsUserNotFound,
	}
}

// DeleteAccount removes the caller's ledger documents and then their identity.
// Every step is idempotent, so a failed call can be retried as is.
func (s *eraserService) DeleteAccount(ctx context.Context, caller *Caller) (*Result, error) {
	if !caller.authenticated() {
		return nil, unauthenticated("You must be logged in to delete your account.")
	}
	log := s.logger.With(zap.String("userID", caller.UID))

	// 1. Load the profile to learn which referral code the user owns.
	var referralCode string
	user, err := s.userRepo.GetByID(ctx, caller.UID)
	switch {
	case err == nil:
		referralCode = user.ReferralCode
	case errors.Is(err, db.ErrNotFound):
		log.Info("No profile found, deleting remaining data and identity")
	default:
		log.Error("Failed to load profile for deletion", zap.Error(err))
		metrics.AccountsErased.WithLabelValues("error").Inc()
		return nil, internal("Failed to delete account. Please try again.", err)
	}

	// 2. Remove profile, history, subscription record and referral code.
	if err := s.ledger.DeleteUserData(ctx, caller.UID, referralCode); err != nil {
		log.Error("Failed to delete account data", zap.Error(err))
		metrics.AccountsErased.WithLabelValues("error").Inc()
		return nil, internal("Failed to delete account. Please try again.", err)
	}

	// 3. Remove the Firebase Auth user last, so a retry can still authenticate.
	if err := s.identity.DeleteUser(ctx, caller.UID); err != nil && !s.identityGone(err) {
		log.Error("Failed to delete identity", zap.Error(err))
		metrics.AccountsErased.WithLabelValues("error").Inc()
		return nil, internal("Failed to delete account. Please try again.", err)
	}

	metrics.AccountsErased.WithLabelValues("ok").Inc()
	log.Info("Account deleted")
	return success("Account deleted successfully."), nil
}
