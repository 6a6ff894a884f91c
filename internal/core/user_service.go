package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"statwise-backend/internal/db"
	"statwise-backend/internal/models"
)

const (
	referralCodePrefix = "REF-"
	referralCodeLength = 6
)

// Codes double as Firestore document ids, so "/" and friends never reach a lookup.
var referralCodePattern = regexp.MustCompile(`^REF-[A-Z0-9_-]{1,128}$`)

// userService implements the UserService interface.
type userService struct {
	userRepo     db.UserRepository
	subRepo      db.SubscriptionRepository
	referralRepo db.ReferralRepository
	ledger       db.LedgerStore
	now          Clock
	logger       *zap.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(userRepo db.UserRepository, subRepo db.SubscriptionRepository, referralRepo db.ReferralRepository, ledger db.LedgerStore, logger *zap.Logger) UserService {
	return newUserService(userRepo, subRepo, referralRepo, ledger, systemClock, logger)
}

func newUserService(userRepo db.UserRepository, subRepo db.SubscriptionRepository, referralRepo db.ReferralRepository, ledger db.LedgerStore, now Clock, logger *zap.Logger) *userService {
	return &userService{
		userRepo:     userRepo,
		subRepo:      subRepo,
		referralRepo: referralRepo,
		ledger:       ledger,
		now:          now,
		logger:       logger,
	}
}

// Initialize returns the caller's profile, creating it on first call with a
// Free tier, a fresh referral code, and an optional referral link. Returns the
// user and whether it was created.
func (s *userService) Initialize(ctx context.Context, caller *Caller, req models.InitializeProfileRequest) (*models.UserAccount, bool, error) {
	if !caller.authenticated() {
		return nil, false, unauthenticated("You must be logged in to create a profile.")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = defaultUsername(caller)
	}
	inviteCode, ok := NormalizeReferralCode(req.ReferralCode)
	if !ok {
		return nil, false, invalidArgument("Invalid referral code.")
	}

	var user *models.UserAccount
	var created bool
	err := s.ledger.RunTransaction(ctx, func(ctx context.Context, tx db.LedgerTx) error {
		user, created = nil, false

		existing, err := tx.GetUser(caller.UID)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, db.ErrNotFound) {
			return err
		}

		var referrer *models.ReferralCode
		if inviteCode != "" {
			referrer, err = tx.GetReferralCode(inviteCode)
			if err != nil {
				if errors.Is(err, db.ErrNotFound) {
					return invalidArgument("Invalid referral code.")
				}
				return err
			}
			if referrer.UserID == caller.UID {
				referrer = nil
			}
		}

		ownCode, err := s.pickReferralCode(tx, caller.UID)
		if err != nil {
			return err
		}

		now := s.now()
		user = &models.UserAccount{
			ID:            caller.UID,
			Username:      username,
			Email:         caller.Email,
			Tier:          models.TierFree,
			ReferralCode:  ownCode,
			Notifications: true,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if referrer != nil {
			user.ReferredBy = referrer.UserID
		}

		if err := tx.CreateUser(user); err != nil {
			return err
		}
		if err := tx.SaveReferralCode(&models.ReferralCode{
			Code:      ownCode,
			UserID:    caller.UID,
			Username:  username,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		if referrer != nil {
			if err := tx.SaveReferral(&models.ReferralRelationship{
				ReferrerID:   referrer.UserID,
				ReferredID:   caller.UID,
				ReferralCode: inviteCode,
				CreatedAt:    now,
			}); err != nil {
				return err
			}
			if err := tx.AppendHistory(referrer.UserID, models.HistoryEntry{
				Action:    fmt.Sprintf("Your friend '%s' joined using your referral code!", username),
				CreatedAt: now,
				CreatorID: caller.UID,
			}); err != nil {
				return err
			}
		}
		created = true
		return nil
	})
	if err != nil {
		if CodeOf(err) == CodeInvalidArgument {
			return nil, false, asError(err, "")
		}
		s.logger.Error("Failed to initialize profile", zap.String("userID", caller.UID), zap.Error(err))
		return nil, false, internal("Failed to initialize profile.", err)
	}

	if created {
		s.logger.Info("Profile created",
			zap.String("userID", user.ID),
			zap.String("referralCode", user.ReferralCode),
			zap.String("referredBy", user.ReferredBy),
		)
	}
	return user, created, nil
}

// pickReferralCode derives REF-XXXXXX from the UID, lengthening the suffix
// if a different account already owns that code.
func (s *userService) pickReferralCode(tx db.LedgerTx, uid string) (string, error) {
	clean := strings.ToUpper(uid)
	for n := referralCodeLength; ; n += 2 {
		if n > len(clean) {
			n = len(clean)
		}
		code := referralCodePrefix + clean[:n]
		existing, err := tx.GetReferralCode(code)
		if errors.Is(err, db.ErrNotFound) || (err == nil && existing.UserID == uid) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
		if n == len(clean) {
			return "", fmt.Errorf("no free referral code for user '%s'", uid)
		}
	}
}

// GetProfile retrieves the caller's profile.
func (s *userService) GetProfile(ctx context.Context, caller *Caller) (*models.UserAccount, error) {
	if !caller.authenticated() {
		return nil, unauthenticated("You must be logged in to view your profile.")
	}
	user, err := s.userRepo.GetByID(ctx, caller.UID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, newError(CodeNotFound, "Profile not found.", err)
		}
		return nil, internal("Failed to load profile.", err)
	}
	return user, nil
}

// GetSubscription returns the caller's transaction log.
func (s *userService) GetSubscription(ctx context.Context, caller *Caller) (*models.SubscriptionRecord, error) {
	if !caller.authenticated() {
		return nil, unauthenticated("You must be logged in to view your subscription.")
	}
	record, err := s.subRepo.GetByUserID(ctx, caller.UID)
	if err != nil {
		return nil, internal("Failed to load subscription.", err)
	}
	return record, nil
}

// ListReferrals returns the accounts the caller has referred.
func (s *userService) ListReferrals(ctx context.Context, caller *Caller) ([]*models.ReferralRelationship, error) {
	if !caller.authenticated() {
		return nil, unauthenticated("You must be logged in to view referrals.")
	}
	rels, err := s.referralRepo.ListByReferrer(ctx, caller.UID)
	if err != nil {
		return nil, internal("Failed to load referrals.", err)
	}
	return rels, nil
}

// RegisterDevice adds an FCM token to the caller's profile.
func (s *userService) RegisterDevice(ctx context.Context, caller *Caller, token string) error {
	if !caller.authenticated() {
		return unauthenticated("You must be logged in to register a device.")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return invalidArgument("Missing device token.")
	}
	return s.mapUpdateErr(s.userRepo.AddDeviceToken(ctx, caller.UID, token), "Failed to register device.")
}

// SetNotifications updates the caller's push opt-in.
func (s *userService) SetNotifications(ctx context.Context, caller *Caller, enabled bool) error {
	if !caller.authenticated() {
		return unauthenticated("You must be logged in to change notification settings.")
	}
	return s.mapUpdateErr(s.userRepo.SetNotifications(ctx, caller.UID, enabled), "Failed to update notification settings.")
}

func (s *userService) mapUpdateErr(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrNotFound) {
		return newError(CodeNotFound, "Profile not found.", err)
	}
	return internal(message, err)
}

// NormalizeReferralCode upper-cases a user-supplied code and adds the REF- prefix if missing.
// It reports false when the result holds characters a referral code never has.
// An empty input normalizes to "" and is valid: the caller simply has no code.
func NormalizeReferralCode(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", true
	}
	if !strings.HasPrefix(code, referralCodePrefix) {
		code = referralCodePrefix + code
	}
	if !referralCodePattern.MatchString(code) {
		return "", false
	}
	return code, true
}

func defaultUsername(caller *Caller) string {
	if name := strings.TrimSpace(caller.Name); name != "" {
		return name
	}
	if at := strings.Index(caller.Email, "@"); at > 0 {
		return caller.Email[:at]
	}
	return "User"
}
