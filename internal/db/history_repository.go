package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"statwise-backend/internal/models"
)

// firestoreHistoryRepository implements HistoryRepository on users/{id}/history.
type firestoreHistoryRepository struct {
	client *firestore.Client
}

// NewFirestoreHistoryRepository creates a new instance of firestoreHistoryRepository.
func NewFirestoreHistoryRepository(client *firestore.Client) HistoryRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for HistoryRepository.")
	}
	return &firestoreHistoryRepository{client: client}
}

// Append adds a history entry with an auto-generated ID.
func (r *firestoreHistoryRepository) Append(ctx context.Context, userID string, entry models.HistoryEntry) error {
	if userID == "" {
		return errors.New("userID cannot be empty for Append operation")
	}
	// NewDoc assigns a random ID; Create fails rather than overwrite on a collision.
	docRef := r.client.Collection(usersCollection).Doc(userID).Collection(historySubcollection).NewDoc()
	if _, err := docRef.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to append history for user '%s': %w", userID, err)
	}
	return nil
}

// ListByUser returns the newest entries first.
func (r *firestoreHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.HistoryEntry, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListByUser operation")
	}
	query := r.client.Collection(usersCollection).Doc(userID).Collection(historySubcollection).
		OrderBy("createdAt", firestore.Desc)
	// No limit means the whole subcollection; the service always passes one.
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop() // Important to release resources

	entries := []*models.HistoryEntry{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate history for user '%s': %w", userID, err)
		}
		var entry models.HistoryEntry
		// Skip entries that no longer match the model, as ListByReferrer does.
		if err := doc.DataTo(&entry); err != nil {
			log.Printf("Error decoding history entry (ID: %s) for user '%s': %v. Skipping.", doc.Ref.ID, userID, err)
			continue
		}
		entry.ID = doc.Ref.ID
		entries = append(entries, &entry)
	}
	return entries, nil
}
