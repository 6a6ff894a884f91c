package core

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"statwise-backend/internal/db"
	"statwise-backend/internal/metrics"
	"statwise-backend/internal/models"
)

// multicastLimit is the FCM cap on tokens per multicast call.
const multicastLimit = 500

// NotificationOptions configures the dispatcher.
type NotificationOptions struct {
	IconURL      string
	DefaultLink  string
	RequireAdmin bool
}

// notificationService implements the NotificationService interface.
type notificationService struct {
	users  db.UserRepository
	pusher Pusher
	opts   NotificationOptions
	logger *zap.Logger
	// isUnregistered reports whether a per-token error means the token is dead.
	isUnregistered func(error) bool
}

// NewNotificationService creates a new NotificationService instance.
func NewNotificationService(users db.UserRepository, pusher Pusher, opts NotificationOptions, logger *zap.Logger) NotificationService {
	return &notificationService{
		users:          users,
		pusher:         pusher,
		opts:           opts,
		logger:         logger,
		isUnregistered: messaging.IsUnregistered,
	}
}

// SendPredictionAlert pushes title/body to every device of every paid
// subscriber with notifications enabled. Per-device failures are counted,
// never fatal; unregistered tokens are removed from their profiles.
func (s *notificationService) SendPredictionAlert(ctx context.Context, caller *Caller, req models.PredictionAlertRequest) (*Result, error) {
	// 1. Authorization, when the deployment restricts broadcasts to operators.
	if s.opts.RequireAdmin {
		if !caller.authenticated() {
			return nil, unauthenticated("You must be logged in to send notifications.")
		}
		if !caller.Admin {
			return nil, newError(CodePermissionDenied, "Only admins can send notifications.", nil)
		}
	}

	// 2. Validate the payload.
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Body)
	if title == "" || body == "" {
		return nil, invalidArgument("Missing title or body.")
	}

	// 3. Audience: paid tiers with notifications switched on.
	users, err := s.users.FindNotifiable(ctx, models.PaidTiers)
	if err != nil {
		s.logger.Error("Failed to query notifiable users", zap.Error(err))
		return nil, internal("Failed to send notifications.", err)
	}
	if len(users) == 0 {
		return success("No users to notify."), nil
	}

	tokens, owners := collectTokens(users)
	if len(tokens) == 0 {
		return success("Users found, but no notification tokens available."), nil
	}

	// Clicking the notification opens the match page, or the app home.
	link := strings.TrimSpace(req.MatchURL)
	if link == "" {
		link = s.opts.DefaultLink
	}

	// 4. Send in chunks of at most multicastLimit tokens.
	var sent, failed, chunkErrors int
	stale := map[string][]string{} // userID -> tokens FCM reported as unregistered
	for start := 0; start < len(tokens); start += multicastLimit {
		end := start + multicastLimit
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		resp, err := s.pusher.SendEachForMulticast(ctx, s.buildMessage(chunk, title, body, link))
		if err != nil {
			// The whole chunk failed; later chunks still go out.
			s.logger.Error("Multicast send failed", zap.Int("tokens", len(chunk)), zap.Error(err))
			failed += len(chunk)
			chunkErrors++
			continue
		}
		sent += resp.SuccessCount
		failed += resp.FailureCount
		// Responses are index-aligned with the chunk's tokens.
		for i, r := range resp.Responses {
			if r == nil || r.Success || i >= len(chunk) {
				continue
			}
			if s.isUnregistered(r.Error) {
				for _, uid := range owners[chunk[i]] {
					stale[uid] = append(stale[uid], chunk[i])
				}
			}
		}
	}

	metrics.NotificationsSent.WithLabelValues("success").Add(float64(sent))
	metrics.NotificationsSent.WithLabelValues("failure").Add(float64(failed))

	// Only a total outage is an error for the caller.
	chunks := (len(tokens) + multicastLimit - 1) / multicastLimit
	if chunkErrors == chunks {
		return nil, internal("Failed to send notifications.", fmt.Errorf("all %d multicast calls failed", chunks))
	}

	// 5. Best effort cleanup of dead tokens.
	s.pruneTokens(ctx, stale)

	s.logger.Info("Prediction alert dispatched",
		zap.Int("users", len(users)),
		zap.Int("tokens", len(tokens)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	return success(fmt.Sprintf("Notification sent to %d devices (%d failed).", sent, failed)), nil
}

// buildMessage sets both the generic notification and the Webpush block,
// which carries the icon and click-through link for browsers.
func (s *notificationService) buildMessage(tokens []string, title, body, link string) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: title,
				Body:  body,
				Icon:  s.opts.IconURL,
			},
			FCMOptions: &messaging.WebpushFCMOptions{Link: link},
		},
	}
}

// pruneTokens removes unregistered tokens from each owner's profile. Failures
// are logged and the token is retried on the next broadcast.
func (s *notificationService) pruneTokens(ctx context.Context, stale map[string][]string) {
	for uid, tokens := range stale {
		if err := s.users.RemoveDeviceTokens(ctx, uid, tokens); err != nil {
			s.logger.Warn("Failed to prune stale tokens", zap.String("userID", uid), zap.Error(err))
			continue
		}
		metrics.TokensPruned.Add(float64(len(tokens)))
	}
}

// collectTokens flattens device tokens, dropping blanks and duplicates while
// keeping first-seen order. owners maps each token to the accounts holding it.
func collectTokens(users []*models.UserAccount) ([]string, map[string][]string) {
	var tokens []string
	owners := map[string][]string{}
	for _, u := range users {
		for _, t := range u.DeviceTokens {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, seen := owners[t]; !seen {
				tokens = append(tokens, t)
			}
			owners[t] = append(owners[t], u.ID)
		}
	}
	return tokens, owners
}
