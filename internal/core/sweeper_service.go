package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"statwise-backend/internal/db"
	"statwise-backend/internal/metrics"
)

const (
	// sweepChunkSize keeps each transaction under Firestore's 500-write limit.
	sweepChunkSize = 500
	sweepLockKey   = "statwise:sweeper:lock"
	sweepLockTTL   = 10 * time.Minute

	expiredHistoryMessage = "Subscription expired, reverted to Free Tier."
)

// sweeperService implements the SweeperService interface.
type sweeperService struct {
	ledger  db.LedgerStore
	history HistoryService
	locker  Locker
	now     Clock
	logger  *zap.Logger
}

// NewSweeperService creates a new SweeperService instance.
func NewSweeperService(ledger db.LedgerStore, history HistoryService, locker Locker, logger *zap.Logger) SweeperService {
	return newSweeperService(ledger, history, locker, systemClock, logger)
}

func newSweeperService(ledger db.LedgerStore, history HistoryService, locker Locker, now Clock, logger *zap.Logger) *sweeperService {
	return &sweeperService{ledger: ledger, history: history, locker: locker, now: now, logger: logger}
}

// Sweep reverts every account whose paid tier expired at or before the start
// of the run. Each chunk re-reads its accounts inside a transaction, so an
// account renewed between query and commit is left alone. Running it twice
// changes nothing the second time.
func (s *sweeperService) Sweep(ctx context.Context) (*SweepReport, error) {
	now := s.now()
	report := &SweepReport{Downgraded: []string{}, StartedAt: now}

	// Only one sweep runs at a time across instances.
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, sweepLockKey, sweepLockTTL)
		switch {
		case err != nil:
			// Lock backend down: sweeping twice is harmless, skipping a day is not.
			s.logger.Warn("Sweeper lock unavailable, running unguarded", zap.Error(err))
		case !ok:
			s.logger.Info("Sweep already in progress elsewhere, skipping")
			metrics.SweepRuns.WithLabelValues("skipped").Inc()
			report.Skipped = true
			return report, nil
		default:
			defer release()
		}
	}

	unreadable := map[string]bool{} // IDs already added to report.Unreadable
	for {
		var downgraded, skipped []string
		var fetched, written int
		err := s.ledger.RunTransaction(ctx, func(ctx context.Context, tx db.LedgerTx) error {
			// The closure may be retried on contention; reset per attempt.
			downgraded = downgraded[:0]
			written = 0
			users, bad, err := tx.ExpiredUsers(now, sweepChunkSize)
			if err != nil {
				return err
			}
			skipped = bad
			fetched = len(users) + len(bad)
			for _, user := range users {
				wasPaid := user.IsExpired(now)
				// Free accounts with a stale expiry are normalized too so they
				// stop matching the expiry query.
				stale := !user.Tier.IsPaid() && user.TierExpiry != nil
				if !wasPaid && !stale {
					continue
				}
				user.Downgrade()
				if err := tx.SetTier(user); err != nil {
					return err
				}
				written++
				if wasPaid {
					downgraded = append(downgraded, user.ID)
				}
			}
			return nil
		})
		if err != nil {
			metrics.SweepRuns.WithLabelValues("error").Inc()
			s.logger.Error("Sweeper chunk failed", zap.Error(err), zap.Int("downgradedSoFar", len(report.Downgraded)))
			return report, internal("Failed to process expired subscriptions.", err)
		}

		// The chunk committed.
		report.Downgraded = append(report.Downgraded, downgraded...)
		metrics.SweepDowngrades.Add(float64(len(downgraded)))
		for _, id := range skipped {
			if !unreadable[id] {
				unreadable[id] = true
				report.Unreadable = append(report.Unreadable, id)
			}
		}

		if fetched < sweepChunkSize {
			break // Last chunk
		}
		// A full chunk with nothing written would be returned again unchanged.
		if written == 0 {
			s.logger.Warn("Sweeper chunk made no progress, stopping early", zap.Int("unreadable", len(skipped)))
			break
		}
	}
	if len(report.Unreadable) > 0 {
		s.logger.Warn("Skipped undecodable user documents", zap.Strings("userIDs", report.Unreadable))
	}

	// History is written after the commits and outside the lock's critical path.
	for _, userID := range report.Downgraded {
		if err := s.history.Record(ctx, userID, expiredHistoryMessage, ""); err != nil {
			s.logger.Warn("Failed to record expiry history", zap.String("userID", userID), zap.Error(err))
		}
	}

	metrics.SweepRuns.WithLabelValues("ok").Inc()
	if len(report.Downgraded) == 0 {
		s.logger.Info("No expired subscriptions found")
	} else {
		s.logger.Info("Expired subscriptions processed", zap.Int("count", len(report.Downgraded)))
	}
	return report, nil
}
