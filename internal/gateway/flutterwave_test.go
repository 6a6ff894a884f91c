package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *FlutterwaveClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFlutterwaveClient(srv.URL+"/", "sk_test", 2*time.Second, zaptest.NewLogger(t))
}

func TestFlutterwaveClient_VerifyTransaction(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantErr    bool
		wantAmount string
		wantRef    string
	}{
		{
			name:       "successful transaction",
			status:     http.StatusOK,
			body:       `{"status":"success","message":"Transaction fetched successfully","data":{"id":4471,"tx_ref":"ref-1","amount":5000,"currency":"NGN","status":"successful"}}`,
			wantAmount: "5000",
			wantRef:    "ref-1",
		},
		{
			name:       "fractional amount keeps precision",
			status:     http.StatusOK,
			body:       `{"status":"success","data":{"id":"9","tx_ref":"ref-2","amount":1999.99,"currency":"NGN","status":"failed"}}`,
			wantAmount: "1999.99",
			wantRef:    "ref-2",
		},
		{
			name:    "gateway error status",
			status:  http.StatusBadRequest,
			body:    `{"status":"error","message":"No transaction was found for this id","data":null}`,
			wantErr: true,
		},
		{
			name:    "missing data",
			status:  http.StatusOK,
			body:    `{"status":"error","message":"weird","data":null}`,
			wantErr: true,
		},
		{
			name:    "malformed body",
			status:  http.StatusOK,
			body:    `not json`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/v3/transactions/4471/verify", r.URL.Path)
				assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			v, err := client.VerifyTransaction(context.Background(), "4471")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(v.Amount))
			assert.Equal(t, tt.wantRef, v.TxRef)
			assert.Equal(t, "NGN", v.Currency)
			assert.NotEmpty(t, v.Raw)
		})
	}
}

func TestFlutterwaveClient_EmptyID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("gateway must not be called")
	})
	_, err := client.VerifyTransaction(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyTransactionID)
}

func TestFlutterwaveClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewFlutterwaveClient(srv.URL, "sk_test", 50*time.Millisecond, zaptest.NewLogger(t))
	_, err := client.VerifyTransaction(context.Background(), "1")
	assert.Error(t, err)
}
