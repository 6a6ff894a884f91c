package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statwise-backend/internal/models"
)

var errIdentityGone = errors.New("user-not-found")

func newEraserFixture(t *testing.T) (*memStore, *fakeIdentity, *eraserService) {
	t.Helper()
	store := newMemStore()
	identity := &fakeIdentity{}
	svc := NewEraserService(store, store, identity, newTestLogger(t)).(*eraserService)
	svc.identityGone = func(err error) bool { return errors.Is(err, errIdentityGone) }
	return store, identity, svc
}

func seedAccount(store *memStore) {
	store.putUser(models.UserAccount{ID: "U", Tier: models.TierPremium, ReferralCode: "REF-UUUUUU"})
	store.mu.Lock()
	defer store.mu.Unlock()
	store.state.subs["U"] = []models.TransactionEntry{{TransactionID: "1"}}
	store.state.history["U"] = []models.HistoryEntry{{Action: "joined"}}
	store.state.codes["REF-UUUUUU"] = models.ReferralCode{UserID: "U"}
	store.state.users["V"] = models.UserAccount{ID: "V", Tier: models.TierFree}
}

func TestEraserService_DeleteAccount(t *testing.T) {
	store, identity, svc := newEraserFixture(t)
	seedAccount(store)

	res, err := svc.DeleteAccount(context.Background(), &Caller{UID: "U"})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Account deleted successfully.", res.Message)

	st := store.snapshot()
	assert.NotContains(t, st.users, "U")
	assert.NotContains(t, st.subs, "U")
	assert.NotContains(t, st.history, "U")
	assert.NotContains(t, st.codes, "REF-UUUUUU")
	assert.Contains(t, st.users, "V")
	assert.Equal(t, []string{"U"}, identity.deleted)
}

func TestEraserService_Unauthenticated(t *testing.T) {
	store, identity, svc := newEraserFixture(t)
	seedAccount(store)

	_, err := svc.DeleteAccount(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, CodeUnauthenticated, CodeOf(err))
	assert.Contains(t, store.snapshot().users, "U")
	assert.Empty(t, identity.deleted)
}

func TestEraserService_Failures(t *testing.T) {
	t.Run("document delete fails", func(t *testing.T) {
		store, identity, svc := newEraserFixture(t)
		seedAccount(store)
		store.deleteErr = errors.New("aborted")

		_, err := svc.DeleteAccount(context.Background(), &Caller{UID: "U"})
		assert.ErrorIs(t, err, ErrInternal)
		assert.Empty(t, identity.deleted)
	})

	t.Run("identity delete fails", func(t *testing.T) {
		store, identity, svc := newEraserFixture(t)
		seedAccount(store)
		identity.err = errors.New("auth backend down")

		_, err := svc.DeleteAccount(context.Background(), &Caller{UID: "U"})
		assert.ErrorIs(t, err, ErrInternal)
	})

	t.Run("retry after identity already removed succeeds", func(t *testing.T) {
		_, identity, svc := newEraserFixture(t)
		identity.err = errIdentityGone

		res, err := svc.DeleteAccount(context.Background(), &Caller{UID: "U"})
		require.NoError(t, err)
		assert.Equal(t, "success", res.Status)
	})
}
