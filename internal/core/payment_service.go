package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"statwise-backend/internal/db"
	"statwise-backend/internal/gateway"
	"statwise-backend/internal/metrics"
	"statwise-backend/internal/models"
)

const gatewayStatusSuccessful = "successful"

// PaymentOptions configures the payment verifier.
type PaymentOptions struct {
	Currency string
	// ReferralRewardDays is how long the referral reward extends the referrer's tier.
	ReferralRewardDays int
	// PreserveHigherTier keeps an active VIP/VVIP referrer on their tier when rewarding.
	PreserveHigherTier bool
}

type paymentService struct {
	ledger  db.LedgerStore
	gateway gateway.Verifier
	opts    PaymentOptions
	now     Clock
	logger  *zap.Logger
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(ledger db.LedgerStore, verifier gateway.Verifier, opts PaymentOptions, logger *zap.Logger) PaymentService {
	return newPaymentService(ledger, verifier, opts, systemClock, logger)
}

func newPaymentService(ledger db.LedgerStore, verifier gateway.Verifier, opts PaymentOptions, now Clock, logger *zap.Logger) *paymentService {
	if opts.Currency == "" {
		opts.Currency = "NGN"
	}
	if opts.ReferralRewardDays <= 0 {
		opts.ReferralRewardDays = 7
	}
	return &paymentService{ledger: ledger, gateway: verifier, opts: opts, now: now, logger: logger}
}

// VerifyPayment confirms a gateway transaction and, on success, grants the
// paid tier, rewards the payer's referrer once, and appends the transaction.
// All ledger writes commit together or not at all.
func (s *paymentService) VerifyPayment(ctx context.Context, caller *Caller, req models.VerifyPaymentRequest) (*Result, error) {
	if !caller.authenticated() {
		return nil, unauthenticated("You must be logged in to verify a payment.")
	}

	transactionID := strings.TrimSpace(req.TransactionID.String())
	txRef := strings.TrimSpace(req.TxRef)
	if transactionID == "" || txRef == "" || req.Tier == "" || req.Period == "" || !req.Amount.IsPositive() {
		return nil, invalidArgument("Missing required data for verification.")
	}
	tier, err := models.ParseTier(req.Tier)
	if err != nil || !tier.IsPaid() {
		return nil, invalidArgument(fmt.Sprintf("Unknown subscription tier %q.", req.Tier))
	}
	period := models.Period(strings.ToLower(strings.TrimSpace(req.Period)))
	if !period.Valid() {
		return nil, invalidArgument(fmt.Sprintf("Unknown billing period %q.", req.Period))
	}

	log := s.logger.With(zap.String("userID", caller.UID), zap.String("transactionId", transactionID))

	start := time.Now()
	verification, err := s.gateway.VerifyTransaction(ctx, transactionID)
	metrics.GatewayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error("Payment gateway verification failed", zap.Error(err))
		metrics.PaymentVerifications.WithLabelValues("gateway_error").Inc()
		return nil, internal("An error occurred while verifying the payment.", err)
	}

	if reason := s.rejectReason(verification, transactionID, txRef, req); reason != "" {
		log.Warn("Payment rejected", zap.String("reason", reason), zap.String("gatewayStatus", verification.Status))
		metrics.PaymentVerifications.WithLabelValues("rejected").Inc()
		return nil, &Error{
			Code:    CodeFailedPrecondition,
			Message: "Payment verification failed.",
			Details: verification.Raw,
		}
	}

	// From here on the gateway's own id keys the ledger, never the client's spelling of it.
	gatewayID := verification.ID
	now := s.now()
	expiry := ExpiryFor(period, now)
	rewarded := false

	err = s.ledger.RunTransaction(ctx, func(ctx context.Context, tx db.LedgerTx) error {
		rewarded = false

		applied, err := tx.PaymentApplied(gatewayID)
		if err != nil {
			return err
		}
		if applied {
			return newError(CodeFailedPrecondition, "This payment has already been applied.", nil)
		}

		payer, err := tx.GetUser(caller.UID)
		if err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				return err
			}
			payer = &models.UserAccount{ID: caller.UID, Tier: models.TierFree}
		}

		var referrer *models.UserAccount
		var rel *models.ReferralRelationship
		if payer.ReferredBy != "" && payer.ReferredBy != payer.ID {
			referrer, rel, err = s.loadReferral(tx, payer)
			if err != nil {
				return err
			}
		}

		// writes start here
		payer.Tier = tier
		payer.TierExpiry = &expiry
		payer.AutoRenew = true
		if err := tx.SetTier(payer); err != nil {
			return err
		}

		if referrer != nil {
			applyReferralReward(referrer, now, s.opts.ReferralRewardDays, s.opts.PreserveHigherTier)
			if err := tx.SetTier(referrer); err != nil {
				return err
			}
			rewardedAt := now
			rel.RewardClaimed = true
			rel.RewardedAt = &rewardedAt
			rel.RewardAmount = verification.Amount.InexactFloat64()
			if err := tx.SaveReferral(rel); err != nil {
				return err
			}
			if err := tx.AppendHistory(referrer.ID, models.HistoryEntry{
				Action:    referralRewardMessage(payer.Username, s.opts.ReferralRewardDays),
				CreatedAt: now,
				CreatorID: payer.ID,
			}); err != nil {
				return err
			}
			rewarded = true
		}

		if err := tx.AppendTransaction(payer.ID, models.TransactionEntry{
			Amount:        verification.Amount.InexactFloat64(),
			Currency:      verification.Currency,
			Description:   fmt.Sprintf("Subscription to %s (%s)", tier, period),
			Status:        verification.Status,
			TransactionID: gatewayID,
			TxRef:         txRef,
			Tier:          tier,
			Period:        period,
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		return tx.MarkPaymentApplied(models.PaymentMarker{
			TransactionID: gatewayID,
			UserID:        payer.ID,
			TxRef:         txRef,
			CreatedAt:     now,
		})
	})
	if err != nil {
		if CodeOf(err) == CodeFailedPrecondition {
			log.Warn("Duplicate payment verification", zap.Error(err))
			metrics.PaymentVerifications.WithLabelValues("duplicate").Inc()
			return nil, asError(err, "")
		}
		log.Error("Failed to apply verified payment", zap.Error(err))
		metrics.PaymentVerifications.WithLabelValues("ledger_error").Inc()
		return nil, internal("An error occurred while verifying the payment.", err)
	}

	if rewarded {
		metrics.ReferralRewards.Inc()
	}
	metrics.PaymentVerifications.WithLabelValues("success").Inc()
	log.Info("Payment verified",
		zap.String("tier", string(tier)),
		zap.Time("tierExpiry", expiry),
		zap.Bool("referralRewarded", rewarded),
	)
	return success(fmt.Sprintf("Successfully subscribed to %s!", tier)), nil
}

// rejectReason returns why the gateway record does not authorize the
// requested purchase, or "" when it does.
func (s *paymentService) rejectReason(v *gateway.Verification, transactionID, txRef string, req models.VerifyPaymentRequest) string {
	switch {
	case v.ID == "" || v.ID != transactionID:
		return "transaction_id"
	case v.Status != gatewayStatusSuccessful:
		return "status"
	case v.TxRef != txRef:
		return "tx_ref"
	case v.Amount.LessThan(req.Amount):
		return "amount"
	case !strings.EqualFold(v.Currency, s.opts.Currency):
		return "currency"
	}
	return ""
}

// loadReferral reads the referrer and the relationship record. It returns a
// nil referrer when the reward was already claimed or the referrer is gone.
func (s *paymentService) loadReferral(tx db.LedgerTx, payer *models.UserAccount) (*models.UserAccount, *models.ReferralRelationship, error) {
	rel, err := tx.GetReferral(payer.ID)
	switch {
	case err == nil:
		if rel.RewardClaimed {
			return nil, nil, nil
		}
	case errors.Is(err, db.ErrNotFound):
		// profiles created before relationship records existed
		rel = &models.ReferralRelationship{
			ReferrerID: payer.ReferredBy,
			ReferredID: payer.ID,
			CreatedAt:  s.now(),
		}
	default:
		return nil, nil, err
	}

	referrer, err := tx.GetUser(payer.ReferredBy)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("Referrer no longer exists, skipping reward",
				zap.String("userID", payer.ID), zap.String("referrerID", payer.ReferredBy))
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return referrer, rel, nil
}

// applyReferralReward extends the referrer's tier by days: from the current
// expiry when still active, otherwise from now.
func applyReferralReward(referrer *models.UserAccount, now time.Time, days int, preserveHigher bool) {
	base := now
	active := referrer.HasActivePaidTier(now)
	if active {
		base = *referrer.TierExpiry
	}
	expiry := base.AddDate(0, 0, days)
	referrer.TierExpiry = &expiry
	if !(preserveHigher && active) {
		referrer.Tier = models.TierPremium
	}
}

func referralRewardMessage(username string, days int) string {
	if username == "" {
		username = "A friend"
	}
	length := fmt.Sprintf("%d days", days)
	if days == 7 {
		length = "1 week"
	}
	return fmt.Sprintf("Your referral %s subscribed! You've been rewarded with %s of Premium.", username, length)
}

// ExpiryFor returns when a tier bought at now for period ends.
func ExpiryFor(period models.Period, now time.Time) time.Time {
	if period == models.PeriodMonthly {
		return AddMonthClamped(now)
	}
	return now.Add(24 * time.Hour)
}

// AddMonthClamped adds one calendar month, clamping the day to the last day
// of the target month (Jan 31 -> Feb 28/29).
func AddMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+1, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
