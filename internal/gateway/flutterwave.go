package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a gateway response is read.
const maxResponseBytes = 1 << 20

// ErrEmptyTransactionID is returned when VerifyTransaction is called without an ID.
var ErrEmptyTransactionID = errors.New("gateway: transaction id is empty")

// Verification is the gateway's view of a transaction.
type Verification struct {
	ID       string
	Status   string
	TxRef    string
	Amount   decimal.Decimal
	Currency string
	// Raw is the "data" object exactly as returned, surfaced to clients on rejection.
	Raw json.RawMessage
}

// Verifier looks up a transaction at the payment gateway.
type Verifier interface {
	VerifyTransaction(ctx context.Context, transactionID string) (*Verification, error)
}

// FlutterwaveClient calls GET {base}/v3/transactions/{id}/verify.
type FlutterwaveClient struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	logger     *zap.Logger
}

// NewFlutterwaveClient builds a client with the given request timeout.
func NewFlutterwaveClient(baseURL, secretKey string, timeout time.Duration, logger *zap.Logger) *FlutterwaveClient {
	return &FlutterwaveClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		logger:     logger,
	}
}

// verifyEnvelope is the outer JSON object of every Flutterwave v3 response.
type verifyEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// verifyData holds the fields of "data" the service judges.
type verifyData struct {
	ID       json.Number     `json:"id"` // Numeric on the wire
	TxRef    string          `json:"tx_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
}

// VerifyTransaction fetches the gateway record for transactionID. A non-2xx
// response or an undecodable body is an error; judging the record is up to the caller.
func (c *FlutterwaveClient) VerifyTransaction(ctx context.Context, transactionID string) (*Verification, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrEmptyTransactionID
	}

	// The ID comes from the client, so it is escaped before it enters the path.
	endpoint := fmt.Sprintf("%s/v3/transactions/%s/verify", c.baseURL, url.PathEscape(transactionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey) // Secret key, never logged
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read at most maxResponseBytes.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("gateway: read response: %w", err)
	}

	c.logger.Debug("Gateway verify call finished",
		zap.String("transactionId", transactionID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	// Flutterwave answers 4xx for unknown transactions; the body says why.
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	var envelope verifyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("gateway: decode response: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, fmt.Errorf("gateway: response has no data (status=%q message=%q)", envelope.Status, envelope.Message)
	}

	// Decode the fields we judge; Raw keeps the full object for the client.
	var data verifyData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("gateway: decode transaction data: %w", err)
	}

	return &Verification{
		ID:       data.ID.String(),
		Status:   data.Status,
		TxRef:    data.TxRef,
		Amount:   data.Amount,
		Currency: data.Currency,
		Raw:      envelope.Data,
	}, nil
}

// truncate shortens s to n bytes for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
