package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/chorus/pkg/models"
)

// LedgerStore provides post-record (ledger) database operations.
type LedgerStore struct {
	store *Store
}

// NewLedgerStore creates a new ledger store.
func NewLedgerStore(store *Store) *LedgerStore {
	return &LedgerStore{store: store}
}

// Get retrieves the ledger entry for one post, nil when the post is open.
func (s *LedgerStore) Get(ctx context.Context, postURI string) (*models.PostRecord, error) {
	var record models.PostRecord
	err := s.store.DB.WithContext(ctx).First(&record, "post_uri = ?", postURI).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert writes or overwrites the ledger entry for one post.
func (s *LedgerStore) Upsert(ctx context.Context, record *models.PostRecord) error {
	return s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_uri"}},
			UpdateAll: true,
		}).
		Create(record).Error
}

// Delete removes the ledger entry for one post (admin reset).
func (s *LedgerStore) Delete(ctx context.Context, postURI string) error {
	return s.store.DB.WithContext(ctx).
		Delete(&models.PostRecord{}, "post_uri = ?", postURI).Error
}

// Count returns the number of closed posts.
func (s *LedgerStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.store.DB.WithContext(ctx).Model(&models.PostRecord{}).Count(&count).Error
	return count, err
}

// isNotFound reports whether err is GORM's record-not-found.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
