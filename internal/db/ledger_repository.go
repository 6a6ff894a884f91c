package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"statwise-backend/internal/models"
)

// historyDeleteChunk bounds each history deletion commit; Firestore caps a commit at 500 writes.
const historyDeleteChunk = 500

// firestoreLedgerStore implements LedgerStore with Firestore transactions.
type firestoreLedgerStore struct {
	client *firestore.Client
}

// NewFirestoreLedgerStore creates a new instance of firestoreLedgerStore.
func NewFirestoreLedgerStore(client *firestore.Client) LedgerStore {
	if client == nil {
		log.Fatal("Firestore client is not initialized for LedgerStore.")
	}
	return &firestoreLedgerStore{client: client}
}

// RunTransaction runs fn inside a Firestore transaction.
func (s *firestoreLedgerStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, &firestoreLedgerTx{client: s.client, tx: tx})
	})
}

// DeleteUserData deletes users/{id}/history in chunks, then the profile,
// subscription record and referral code in a single transaction.
func (s *firestoreLedgerStore) DeleteUserData(ctx context.Context, userID, referralCode string) error {
	if userID == "" {
		return errors.New("userID cannot be empty for DeleteUserData operation")
	}
	userRef := s.client.Collection(usersCollection).Doc(userID)

	// Step 1: history subcollection. Firestore does not cascade deletes to
	// subcollections, so every entry is deleted explicitly.
	for {
		refs, err := historyChunk(ctx, userRef)
		if err != nil {
			return fmt.Errorf("failed to list history for user '%s': %w", userID, err)
		}
		if len(refs) == 0 {
			break
		}
		err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			for _, ref := range refs {
				if err := tx.Delete(ref); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to delete history for user '%s': %w", userID, err)
		}
		if len(refs) < historyDeleteChunk {
			break // Last chunk
		}
	}

	// Step 2: the top-level documents. The closure may run more than once, so
	// it works on a local copy of referralCode.

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ownedCode := referralCode
		if ownedCode != "" {
			codeRef := s.client.Collection(referralCodesCollection).Doc(ownedCode)
			snap, err := tx.Get(codeRef)
			switch {
			case err == nil:
				var code models.ReferralCode
				if err := snap.DataTo(&code); err == nil && code.UserID != "" && code.UserID != userID {
					// someone else's code, leave it alone
					ownedCode = ""
				}
			case status.Code(err) == codes.NotFound:
				ownedCode = ""
			default:
				return err
			}
		}
		// Delete on a missing document is a no-op, which keeps retries idempotent.
		if err := tx.Delete(userRef); err != nil {
			return err
		}
		if err := tx.Delete(s.client.Collection(subscriptionsCollection).Doc(userID)); err != nil {
			return err
		}
		if ownedCode != "" {
			return tx.Delete(s.client.Collection(referralCodesCollection).Doc(ownedCode))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete documents for user '%s': %w", userID, err)
	}
	return nil
}

// historyChunk returns up to historyDeleteChunk history document refs. Select()
// with no fields keeps the reads down to document names.
func historyChunk(ctx context.Context, userRef *firestore.DocumentRef) ([]*firestore.DocumentRef, error) {
	docs, err := userRef.Collection(historySubcollection).Select().Limit(historyDeleteChunk).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, len(docs))
	for i, doc := range docs {
		refs[i] = doc.Ref
	}
	return refs, nil
}

// firestoreLedgerTx adapts *firestore.Transaction to LedgerTx.
type firestoreLedgerTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
}

// users returns the users collection reference.
func (t *firestoreLedgerTx) users() *firestore.CollectionRef {
	return t.client.Collection(usersCollection)
}

// GetUser reads users/{id} inside the transaction, locking it until commit.
func (t *firestoreLedgerTx) GetUser(userID string) (*models.UserAccount, error) {
	snap, err := t.tx.Get(t.users().Doc(userID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeUser(snap)
}

// ExpiredUsers returns up to limit users whose tierExpiry is at or before now,
// oldest first. Documents without a tierExpiry never match.
func (t *firestoreLedgerTx) ExpiredUsers(now time.Time, limit int) ([]*models.UserAccount, []string, error) {
	// Range filter and order on the same field need no composite index.
	query := t.users().Where("tierExpiry", "<=", now).OrderBy("tierExpiry", firestore.Asc).Limit(limit)
	docs, err := t.tx.Documents(query).GetAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query expired users: %w", err)
	}
	users := make([]*models.UserAccount, 0, len(docs))
	var unreadable []string
	for _, doc := range docs {
		user, err := decodeUser(doc)
		if err != nil {
			// Reported back so the sweeper can skip it instead of failing the chunk.
			log.Printf("Error decoding expired user %s: %v. Skipping.", doc.Ref.ID, err)
			unreadable = append(unreadable, doc.Ref.ID)
			continue
		}
		users = append(users, user)
	}
	return users, unreadable, nil
}

func (t *firestoreLedgerTx) GetReferral(referredID string) (*models.ReferralRelationship, error) {
	snap, err := t.tx.Get(t.client.Collection(referralsCollection).Doc(referredID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("referral for '%s' not found: %w", referredID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get referral for '%s': %w", referredID, err)
	}
	var rel models.ReferralRelationship
	if err := snap.DataTo(&rel); err != nil {
		return nil, fmt.Errorf("failed to decode referral for '%s': %w", referredID, err)
	}
	rel.ReferredID = snap.Ref.ID // Keyed by the referred user
	return &rel, nil
}

func (t *firestoreLedgerTx) GetReferralCode(code string) (*models.ReferralCode, error) {
	snap, err := t.tx.Get(t.client.Collection(referralCodesCollection).Doc(code))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("referral code '%s' not found: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get referral code '%s': %w", code, err)
	}
	var rc models.ReferralCode
	if err := snap.DataTo(&rc); err != nil {
		return nil, fmt.Errorf("failed to decode referral code '%s': %w", code, err)
	}
	rc.Code = snap.Ref.ID // The document ID is the code itself
	return &rc, nil
}

// PaymentApplied reports whether payments/{transactionID} exists. Reading it
// inside the transaction serializes concurrent verifications of one payment.
func (t *firestoreLedgerTx) PaymentApplied(transactionID string) (bool, error) {
	_, err := t.tx.Get(t.client.Collection(paymentsCollection).Doc(transactionID))
	if err == nil {
		return true, nil
	}
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to check payment marker '%s': %w", transactionID, err)
}

func (t *firestoreLedgerTx) CreateUser(user *models.UserAccount) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for CreateUser operation")
	}
	return t.tx.Create(t.users().Doc(user.ID), user)
}

// SetTier merges the subscription fields of user into its document, leaving
// profile fields untouched.
func (t *firestoreLedgerTx) SetTier(user *models.UserAccount) error {
	var expiry interface{} // nil stores null and removes the user from expiry queries
	if user.TierExpiry != nil {
		expiry = *user.TierExpiry
	}
	return t.tx.Set(t.users().Doc(user.ID), map[string]interface{}{
		"tier":       string(user.Tier),
		"tierExpiry": expiry,
		"autoRenew":  user.AutoRenew,
		"updatedAt":  firestore.ServerTimestamp,
	}, firestore.MergeAll)
}

func (t *firestoreLedgerTx) SaveReferral(rel *models.ReferralRelationship) error {
	return t.tx.Set(t.client.Collection(referralsCollection).Doc(rel.ReferredID), rel)
}

func (t *firestoreLedgerTx) SaveReferralCode(code *models.ReferralCode) error {
	return t.tx.Set(t.client.Collection(referralCodesCollection).Doc(code.Code), code)
}

// AppendTransaction adds entry to subscriptions/{userId}, creating the record if needed.
func (t *firestoreLedgerTx) AppendTransaction(userID string, entry models.TransactionEntry) error {
	return t.tx.Set(t.client.Collection(subscriptionsCollection).Doc(userID), map[string]interface{}{
		"transactions": firestore.ArrayUnion(entry),
	}, firestore.MergeAll)
}

func (t *firestoreLedgerTx) AppendHistory(userID string, entry models.HistoryEntry) error {
	return t.tx.Create(t.users().Doc(userID).Collection(historySubcollection).NewDoc(), entry)
}

// MarkPaymentApplied creates the replay marker. Create fails if it already exists.
func (t *firestoreLedgerTx) MarkPaymentApplied(marker models.PaymentMarker) error {
	return t.tx.Create(t.client.Collection(paymentsCollection).Doc(marker.TransactionID), marker)
}
