package db

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"statwise-backend/internal/models"
)

// firestoreReferralRepository reads referrals/{referredId}.
type firestoreReferralRepository struct {
	client *firestore.Client
}

// NewFirestoreReferralRepository creates a new instance of firestoreReferralRepository.
func NewFirestoreReferralRepository(client *firestore.Client) ReferralRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for ReferralRepository.")
	}
	return &firestoreReferralRepository{client: client}
}

// ListByReferrer returns every relationship where referrerID brought in a new user.
func (r *firestoreReferralRepository) ListByReferrer(ctx context.Context, referrerID string) ([]*models.ReferralRelationship, error) {
	// Single-field equality filter, served by Firestore's automatic index.
	iter := r.client.Collection(referralsCollection).Where("referrerId", "==", referrerID).Documents(ctx)
	defer iter.Stop() // Important to release resources

	rels := []*models.ReferralRelationship{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate referrals for '%s': %w", referrerID, err)
		}
		var rel models.ReferralRelationship
		// One bad document should not hide the rest of the list.
		if err := doc.DataTo(&rel); err != nil {
			log.Printf("Error decoding referral (ID: %s): %v. Skipping.", doc.Ref.ID, err)
			continue
		}
		rel.ReferredID = doc.Ref.ID // Keyed by the referred user
		rels = append(rels, &rel)
	}
	return rels, nil
}
