// Package metrics declares the Prometheus collectors exported on /metrics.
// promauto registers each one with the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PaymentVerifications counts VerifyPayment calls by outcome: success,
	// rejected, duplicate, gateway_error or ledger_error.
	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statwise_payment_verifications_total",
			Help: "Payment verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ReferralRewards counts referrers credited with bonus days.
	ReferralRewards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statwise_referral_rewards_total",
			Help: "Referral rewards granted",
		},
	)

	// GatewayLatency times the outbound verify call, successful or not.
	GatewayLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "statwise_gateway_verify_duration_seconds",
			Help: "Latency of payment gateway verify calls",
		},
	)

	// Sweeper: result is ok, skipped (lock held) or error.
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statwise_sweep_runs_total",
			Help: "Expiry sweeper runs by result",
		},
		[]string{"result"},
	)

	SweepDowngrades = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statwise_sweep_downgrades_total",
			Help: "Accounts reverted to the Free tier by the sweeper",
		},
	)

	// NotificationsSent counts individual device deliveries.
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statwise_notifications_total",
			Help: "Push notifications by delivery result",
		},
		[]string{"result"},
	)

	TokensPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "statwise_notification_tokens_pruned_total",
			Help: "Unregistered device tokens removed from profiles",
		},
	)

	AccountsErased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statwise_accounts_erased_total",
			Help: "Account erasure attempts by result",
		},
		[]string{"result"},
	)

	// HTTP collectors are fed by middleware.RequestLogger, labelled by route template.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "statwise_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "statwise_http_request_duration_seconds",
			Help: "HTTP request latency in seconds",
		},
		[]string{"method", "route"},
	)
)
