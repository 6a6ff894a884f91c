package db

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"statwise-backend/internal/models"
)

// firestoreSubscriptionRepository reads subscriptions/{userId}. Writes happen
// only inside ledger transactions.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a new instance of firestoreSubscriptionRepository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for SubscriptionRepository.")
	}
	return &firestoreSubscriptionRepository{client: client}
}

// GetByUserID returns the user's transaction log, or an empty record if none exists yet.
func (r *firestoreSubscriptionRepository) GetByUserID(ctx context.Context, userID string) (*models.SubscriptionRecord, error) {
	docSnap, err := r.client.Collection(subscriptionsCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// A user who never paid has no record; report an empty log instead of an error.
			return &models.SubscriptionRecord{UserID: userID, Transactions: []models.TransactionEntry{}}, nil
		}
		return nil, fmt.Errorf("failed to get subscription record for '%s': %w", userID, err)
	}
	var record models.SubscriptionRecord
	if err := docSnap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode subscription record for '%s': %w", userID, err)
	}
	record.UserID = userID // The document ID is the user ID
	// Clients expect [] rather than null.
	if record.Transactions == nil {
		record.Transactions = []models.TransactionEntry{}
	}
	return &record, nil
}
