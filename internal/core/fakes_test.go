package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"statwise-backend/internal/db"
	"statwise-backend/internal/gateway"
	"statwise-backend/internal/models"
)

var testNow = time.Date(2024, 1, 31, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

func timePtr(t time.Time) *time.Time { return &t }

func newTestLogger(t *testing.T) *zap.Logger { return zaptest.NewLogger(t) }

// memState is an in-memory copy of the ledger collections.
type memState struct {
	users     map[string]models.UserAccount
	history   map[string][]models.HistoryEntry
	subs      map[string][]models.TransactionEntry
	referrals map[string]models.ReferralRelationship
	codes     map[string]models.ReferralCode
	payments  map[string]models.PaymentMarker
	// corrupt marks user documents that fail to decode.
	corrupt map[string]bool
}

func newMemState() *memState {
	return &memState{
		users:     map[string]models.UserAccount{},
		history:   map[string][]models.HistoryEntry{},
		subs:      map[string][]models.TransactionEntry{},
		referrals: map[string]models.ReferralRelationship{},
		codes:     map[string]models.ReferralCode{},
		payments:  map[string]models.PaymentMarker{},
		corrupt:   map[string]bool{},
	}
}

func cloneUser(u models.UserAccount) models.UserAccount {
	if u.TierExpiry != nil {
		u.TierExpiry = timePtr(*u.TierExpiry)
	}
	u.DeviceTokens = append([]string(nil), u.DeviceTokens...)
	return u
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range s.history {
		c.history[k] = append([]models.HistoryEntry(nil), v...)
	}
	for k, v := range s.subs {
		c.subs[k] = append([]models.TransactionEntry(nil), v...)
	}
	for k, v := range s.referrals {
		c.referrals[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.corrupt {
		c.corrupt[k] = v
	}
	return c
}

// memStore fakes every repository plus the transactional ledger. Transactions
// run serially against a staged copy that replaces the state only on success.
type memStore struct {
	mu    sync.Mutex
	state *memState

	commitErr  error
	deleteErr  error
	historyErr error
	findErr    error
	removeErr  error

	txRuns  int
	removed map[string][]string
}

func newMemStore() *memStore {
	return &memStore{state: newMemState(), removed: map[string][]string{}}
}

func (m *memStore) putUser(u models.UserAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[u.ID] = cloneUser(u)
}

// putCorruptUser stores a document that matches queries but fails to decode.
func (m *memStore) putCorruptUser(u models.UserAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.users[u.ID] = cloneUser(u)
	m.state.corrupt[u.ID] = true
}

func (m *memStore) user(id string) (models.UserAccount, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.state.users[id]
	return cloneUser(u), ok
}

func (m *memStore) snapshot() *memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx db.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txRuns++
	staged := m.state.clone()
	if err := fn(ctx, &memTx{st: staged}); err != nil {
		return err
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.state = staged
	return nil
}

func (m *memStore) DeleteUserData(ctx context.Context, userID, referralCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.state.history, userID)
	delete(m.state.users, userID)
	delete(m.state.subs, userID)
	if rc, ok := m.state.codes[referralCode]; ok && rc.UserID == userID {
		delete(m.state.codes, referralCode)
	}
	return nil
}

func (m *memStore) GetByID(ctx context.Context, userID string) (*models.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.state.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	c := cloneUser(u)
	return &c, nil
}

func (m *memStore) FindNotifiable(ctx context.Context, tiers []models.Tier) ([]*models.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	want := map[models.Tier]bool{}
	for _, t := range tiers {
		want[t] = true
	}
	ids := make([]string, 0, len(m.state.users))
	for id := range m.state.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []*models.UserAccount
	for _, id := range ids {
		u := m.state.users[id]
		if want[u.Tier] && u.Notifications {
			c := cloneUser(u)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) SetNotifications(ctx context.Context, userID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.state.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	u.Notifications = enabled
	m.state.users[userID] = u
	return nil
}

func (m *memStore) AddDeviceToken(ctx context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.state.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	for _, t := range u.DeviceTokens {
		if t == token {
			return nil
		}
	}
	u.DeviceTokens = append(u.DeviceTokens, token)
	m.state.users[userID] = u
	return nil
}

func (m *memStore) RemoveDeviceTokens(ctx context.Context, userID string, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed[userID] = append(m.removed[userID], tokens...)
	u, ok := m.state.users[userID]
	if !ok {
		return db.ErrNotFound
	}
	drop := map[string]bool{}
	for _, t := range tokens {
		drop[t] = true
	}
	kept := u.DeviceTokens[:0]
	for _, t := range u.DeviceTokens {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	u.DeviceTokens = kept
	m.state.users[userID] = u
	return nil
}

func (m *memStore) Append(ctx context.Context, userID string, entry models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return m.historyErr
	}
	m.state.history[userID] = append(m.state.history[userID], entry)
	return nil
}

func (m *memStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.state.history[userID]
	out := []*models.HistoryEntry{}
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := entries[i]
		out = append(out, &e)
	}
	return out, nil
}

func (m *memStore) GetByUserID(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.SubscriptionRecord{
		UserID:       userID,
		Transactions: append([]models.TransactionEntry{}, m.state.subs[userID]...),
	}, nil
}

func (m *memStore) ListByReferrer(ctx context.Context, referrerID string) ([]*models.ReferralRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.ReferralRelationship{}
	for _, rel := range m.state.referrals {
		if rel.ReferrerID == referrerID {
			r := rel
			out = append(out, &r)
		}
	}
	return out, nil
}

// memTx enforces the Firestore rule that reads precede writes.
type memTx struct {
	st    *memState
	wrote bool
}

var errReadAfterWrite = errors.New("memTx: read after write")

func (t *memTx) read() error {
	if t.wrote {
		return errReadAfterWrite
	}
	return nil
}

func (t *memTx) GetUser(userID string) (*models.UserAccount, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	u, ok := t.st.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	c := cloneUser(u)
	return &c, nil
}

func (t *memTx) ExpiredUsers(now time.Time, limit int) ([]*models.UserAccount, []string, error) {
	if err := t.read(); err != nil {
		return nil, nil, err
	}
	var out []*models.UserAccount
	for _, u := range t.st.users {
		if u.TierExpiry != nil && !u.TierExpiry.After(now) {
			c := cloneUser(u)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TierExpiry.Equal(*out[j].TierExpiry) {
			return out[i].ID < out[j].ID
		}
		return out[i].TierExpiry.Before(*out[j].TierExpiry)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	users := out[:0]
	var unreadable []string
	for _, u := range out {
		if t.st.corrupt[u.ID] {
			unreadable = append(unreadable, u.ID)
			continue
		}
		users = append(users, u)
	}
	return users, unreadable, nil
}

func (t *memTx) GetReferral(referredID string) (*models.ReferralRelationship, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	rel, ok := t.st.referrals[referredID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &rel, nil
}

func (t *memTx) GetReferralCode(code string) (*models.ReferralCode, error) {
	if err := t.read(); err != nil {
		return nil, err
	}
	rc, ok := t.st.codes[code]
	if !ok {
		return nil, db.ErrNotFound
	}
	rc.Code = code
	return &rc, nil
}

func (t *memTx) PaymentApplied(transactionID string) (bool, error) {
	if err := t.read(); err != nil {
		return false, err
	}
	_, ok := t.st.payments[transactionID]
	return ok, nil
}

func (t *memTx) CreateUser(user *models.UserAccount) error {
	t.wrote = true
	if _, ok := t.st.users[user.ID]; ok {
		return errors.New("already exists")
	}
	t.st.users[user.ID] = cloneUser(*user)
	return nil
}

func (t *memTx) SetTier(user *models.UserAccount) error {
	t.wrote = true
	u, ok := t.st.users[user.ID]
	if !ok {
		u = models.UserAccount{ID: user.ID}
	}
	u.Tier = user.Tier
	u.TierExpiry = nil
	if user.TierExpiry != nil {
		u.TierExpiry = timePtr(*user.TierExpiry)
	}
	u.AutoRenew = user.AutoRenew
	t.st.users[user.ID] = u
	return nil
}

func (t *memTx) SaveReferral(rel *models.ReferralRelationship) error {
	t.wrote = true
	t.st.referrals[rel.ReferredID] = *rel
	return nil
}

func (t *memTx) SaveReferralCode(code *models.ReferralCode) error {
	t.wrote = true
	t.st.codes[code.Code] = *code
	return nil
}

func (t *memTx) AppendTransaction(userID string, entry models.TransactionEntry) error {
	t.wrote = true
	t.st.subs[userID] = append(t.st.subs[userID], entry)
	return nil
}

func (t *memTx) AppendHistory(userID string, entry models.HistoryEntry) error {
	t.wrote = true
	t.st.history[userID] = append(t.st.history[userID], entry)
	return nil
}

func (t *memTx) MarkPaymentApplied(marker models.PaymentMarker) error {
	t.wrote = true
	if _, ok := t.st.payments[marker.TransactionID]; ok {
		return errors.New("already exists")
	}
	t.st.payments[marker.TransactionID] = marker
	return nil
}

type fakeGateway struct {
	mu    sync.Mutex
	v     *gateway.Verification
	err   error
	calls int
}

func (f *fakeGateway) VerifyTransaction(ctx context.Context, transactionID string) (*gateway.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v := *f.v
	return &v, nil
}

type fakePusher struct {
	mu       sync.Mutex
	messages []*messaging.MulticastMessage
	// respond builds the per-token outcome; nil means every token succeeds.
	respond func(token string) *messaging.SendResponse
	err     error
}

func (f *fakePusher) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	if f.err != nil {
		return nil, f.err
	}
	resp := &messaging.BatchResponse{}
	for _, tok := range msg.Tokens {
		r := &messaging.SendResponse{Success: true, MessageID: "m-" + tok}
		if f.respond != nil {
			r = f.respond(tok)
		}
		if r.Success {
			resp.SuccessCount++
		} else {
			resp.FailureCount++
		}
		resp.Responses = append(resp.Responses, r)
	}
	return resp, nil
}

type fakeIdentity struct {
	deleted []string
	err     error
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, uid string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, uid)
	return nil
}

type fakeLocker struct {
	ok       bool
	err      error
	released bool
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if !f.ok {
		return nil, false, nil
	}
	return func() { f.released = true }, true, nil
}
