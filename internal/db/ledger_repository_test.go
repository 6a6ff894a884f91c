package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"statwise-backend/internal/models"
)

// newEmulatorClient connects to FIRESTORE_EMULATOR_HOST and skips otherwise.
// Each test gets its own project id so runs never see each other's documents.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "statwise-test-"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func assertMissing(t *testing.T, ref *firestore.DocumentRef) {
	t.Helper()
	_, err := ref.Get(context.Background())
	assert.Equal(t, codes.NotFound, status.Code(err), ref.Path)
}

func TestFirestoreLedgerStore_DeleteUserData(t *testing.T) {
	client := newEmulatorClient(t)
	ctx := context.Background()
	store := NewFirestoreLedgerStore(client)

	userRef := client.Collection(usersCollection).Doc("U")
	_, err := userRef.Set(ctx, models.UserAccount{Tier: models.TierPremium, ReferralCode: "REF-UUUUUU"})
	require.NoError(t, err)
	// more than one chunk of history
	for i := 0; i < historyDeleteChunk+3; i++ {
		_, err := userRef.Collection(historySubcollection).Doc(fmt.Sprintf("h%04d", i)).
			Set(ctx, models.HistoryEntry{Action: "entry", CreatedAt: time.Now()})
		require.NoError(t, err)
	}
	_, err = client.Collection(subscriptionsCollection).Doc("U").Set(ctx, map[string]interface{}{"transactions": []interface{}{}})
	require.NoError(t, err)
	_, err = client.Collection(referralCodesCollection).Doc("REF-UUUUUU").Set(ctx, models.ReferralCode{UserID: "U"})
	require.NoError(t, err)
	_, err = client.Collection(referralCodesCollection).Doc("REF-OTHER1").Set(ctx, models.ReferralCode{UserID: "V"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUserData(ctx, "U", "REF-UUUUUU"))

	assertMissing(t, userRef)
	assertMissing(t, client.Collection(subscriptionsCollection).Doc("U"))
	assertMissing(t, client.Collection(referralCodesCollection).Doc("REF-UUUUUU"))
	refs, err := historyChunk(ctx, userRef)
	require.NoError(t, err)
	assert.Empty(t, refs)

	// someone else's code is never removed
	require.NoError(t, store.DeleteUserData(ctx, "U", "REF-OTHER1"))
	_, err = client.Collection(referralCodesCollection).Doc("REF-OTHER1").Get(ctx)
	assert.NoError(t, err)
}

func TestFirestoreLedgerStore_DeleteUserData_EmptyID(t *testing.T) {
	store := &firestoreLedgerStore{}
	assert.Error(t, store.DeleteUserData(context.Background(), "", ""))
}

func TestFirestoreLedgerTx_ExpiredUsersSkipsUndecodable(t *testing.T) {
	client := newEmulatorClient(t)
	ctx := context.Background()
	store := NewFirestoreLedgerStore(client)
	now := time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

	users := client.Collection(usersCollection)
	_, err := users.Doc("good").Set(ctx, models.UserAccount{Tier: models.TierPremium, TierExpiry: timePtr(now.Add(-time.Hour))})
	require.NoError(t, err)
	_, err = users.Doc("broken").Set(ctx, map[string]interface{}{
		"tier":          string(models.TierPremium),
		"tierExpiry":    now.Add(-2 * time.Hour),
		"notifications": "yes",
	})
	require.NoError(t, err)
	_, err = users.Doc("active").Set(ctx, models.UserAccount{Tier: models.TierVIP, TierExpiry: timePtr(now.Add(time.Hour))})
	require.NoError(t, err)

	var got []*models.UserAccount
	var unreadable []string
	err = store.RunTransaction(ctx, func(ctx context.Context, tx LedgerTx) error {
		var err error
		got, unreadable, err = tx.ExpiredUsers(now, 10)
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "good", got[0].ID)
	assert.Equal(t, []string{"broken"}, unreadable)
}

func TestFirestoreLedgerTx_PaymentMarkerIsCreateOnly(t *testing.T) {
	client := newEmulatorClient(t)
	ctx := context.Background()
	store := NewFirestoreLedgerStore(client)

	mark := func() error {
		return store.RunTransaction(ctx, func(ctx context.Context, tx LedgerTx) error {
			applied, err := tx.PaymentApplied("4471")
			if err != nil {
				return err
			}
			if applied {
				return fmt.Errorf("already applied")
			}
			return tx.MarkPaymentApplied(models.PaymentMarker{TransactionID: "4471", UserID: "U"})
		})
	}
	require.NoError(t, mark())
	assert.ErrorContains(t, mark(), "already applied")
}

func timePtr(t time.Time) *time.Time { return &t }
