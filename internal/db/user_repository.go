package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"statwise-backend/internal/models"
)

const (
	usersCollection         = "users"
	historySubcollection    = "history"
	subscriptionsCollection = "subscriptions"
	referralsCollection     = "referrals"
	referralCodesCollection = "referralCodes"
	paymentsCollection      = "payments"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// firestoreUserRepository implements the UserRepository interface using Firestore.
type firestoreUserRepository struct {
	client *firestore.Client
}

// NewFirestoreUserRepository creates a new instance of firestoreUserRepository.
func NewFirestoreUserRepository(client *firestore.Client) UserRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for UserRepository.")
	}
	return &firestoreUserRepository{client: client}
}

// GetByID retrieves a user document by its ID (Firebase Auth UID).
func (r *firestoreUserRepository) GetByID(ctx context.Context, userID string) (*models.UserAccount, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeUser(docSnap)
}

// FindNotifiable queries users on the given tiers with notifications enabled.
func (r *firestoreUserRepository) FindNotifiable(ctx context.Context, tiers []models.Tier) ([]*models.UserAccount, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	// Paid tiers with the push opt-in switched on.
	query := r.client.Collection(usersCollection).
		Where("tier", "in", models.TierStrings(tiers)).
		Where("notifications", "==", true)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var users []*models.UserAccount
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate notifiable users: %w", err)
		}
		user, err := decodeUser(doc)
		if err != nil {
			log.Printf("Error decoding user %s: %v. Skipping.", doc.Ref.ID, err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// SetNotifications toggles the push opt-in flag.
func (r *firestoreUserRepository) SetNotifications(ctx context.Context, userID string, enabled bool) error {
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "notifications", Value: enabled},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	return wrapUpdateErr(err, userID)
}

// AddDeviceToken adds an FCM token to the user's token set.
func (r *firestoreUserRepository) AddDeviceToken(ctx context.Context, userID, token string) error {
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "fcmTokens", Value: firestore.ArrayUnion(token)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	return wrapUpdateErr(err, userID)
}

// RemoveDeviceTokens removes stale FCM tokens from the user's token set.
func (r *firestoreUserRepository) RemoveDeviceTokens(ctx context.Context, userID string, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	// ArrayRemove takes variadic interface{} values.
	values := make([]interface{}, len(tokens))
	for i, t := range tokens {
		values[i] = t
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "fcmTokens", Value: firestore.ArrayRemove(values...)},
	})
	return wrapUpdateErr(err, userID)
}

// wrapUpdateErr maps Update's NotFound to ErrNotFound; Update never creates documents.
func wrapUpdateErr(err error, userID string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
	}
	return fmt.Errorf("failed to update user with ID '%s': %w", userID, err)
}

// decodeUser converts a snapshot to a UserAccount, filling the ID from the
// document name and defaulting a missing tier to Free.
func decodeUser(docSnap *firestore.DocumentSnapshot) (*models.UserAccount, error) {
	var user models.UserAccount
	if err := docSnap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", docSnap.Ref.ID, err)
	}
	user.ID = docSnap.Ref.ID
	if user.Tier == "" {
		user.Tier = models.TierFree
	}
	return &user, nil
}
