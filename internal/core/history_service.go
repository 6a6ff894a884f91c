package core

import (
	"context"
	"fmt"

	"statwise-backend/internal/db"
	"statwise-backend/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// historyService implements the HistoryService interface.
type historyService struct {
	historyRepo db.HistoryRepository
	now         Clock
}

// NewHistoryService creates a new HistoryService instance.
func NewHistoryService(historyRepo db.HistoryRepository) HistoryService {
	return &historyService{historyRepo: historyRepo, now: systemClock}
}

// Record appends an entry to the user's history. Callers treat failures as non-fatal.
func (s *historyService) Record(ctx context.Context, userID, action, creatorID string) error {
	if s.historyRepo == nil {
		return fmt.Errorf("HistoryRepository not initialized in HistoryService")
	}
	entry := models.HistoryEntry{Action: action, CreatedAt: s.now(), CreatorID: creatorID}
	if err := s.historyRepo.Append(ctx, userID, entry); err != nil {
		return fmt.Errorf("failed to record history via repository: %w", err)
	}
	return nil
}

// List returns the caller's newest history entries.
func (s *historyService) List(ctx context.Context, caller *Caller, limit int) ([]*models.HistoryEntry, error) {
	if !caller.authenticated() {
		return nil, unauthenticated("You must be logged in to view history.")
	}
	// Clamp the page size.
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	entries, err := s.historyRepo.ListByUser(ctx, caller.UID, limit)
	if err != nil {
		return nil, internal("Failed to load history.", err)
	}
	return entries, nil
}
