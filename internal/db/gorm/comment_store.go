package gorm

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/thebtf/chorus/pkg/models"
)

// CommentStore provides comment-related database operations.
type CommentStore struct {
	store *Store
}

// NewCommentStore creates a new comment store.
func NewCommentStore(store *Store) *CommentStore {
	return &CommentStore{store: store}
}

// InsertIfAbsent stores a comment unless one with the same ID already
// exists. Returns true when a new row was written. Re-ingesting a
// previously seen reply is a no-op.
func (s *CommentStore) InsertIfAbsent(ctx context.Context, comment *models.Comment) (bool, error) {
	result := s.store.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(comment)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetByParent retrieves all comments for one parent post in stored order
// (oldest first, ID as tiebreak). This order seeds the clustering pass, so
// it must be stable across calls.
func (s *CommentStore) GetByParent(ctx context.Context, parentURI string) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := s.store.DB.WithContext(ctx).
		Where("parent_uri = ?", parentURI).
		Order("created_at_epoch ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

// GetByID retrieves a single comment, nil when absent.
func (s *CommentStore) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var comment models.Comment
	err := s.store.DB.WithContext(ctx).First(&comment, "id = ?", id).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ParentCount is one row of the per-post comment tally.
type ParentCount struct {
	ParentURI string `json:"parent_uri"`
	ParentCID string `json:"parent_cid"`
	Count     int    `json:"count"`
}

// CountsByParent tallies stored comments per parent post, most commented
// first.
func (s *CommentStore) CountsByParent(ctx context.Context) ([]ParentCount, error) {
	var rows []ParentCount
	err := s.store.DB.WithContext(ctx).
		Model(&models.Comment{}).
		Select("parent_uri, MAX(parent_c_id) AS parent_c_id, COUNT(*) AS count").
		Group("parent_uri").
		Order("count DESC, parent_uri ASC").
		Scan(&rows).Error
	return rows, err
}

// MarkProcessed flips the processed flag for the given comment IDs.
func (s *CommentStore) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.store.DB.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id IN ?", ids).
		Update("processed", true).Error
}

// ClearProcessedByParent un-marks all comments of one parent post so a
// reset post is reconsidered from scratch.
func (s *CommentStore) ClearProcessedByParent(ctx context.Context, parentURI string) error {
	return s.store.DB.WithContext(ctx).
		Model(&models.Comment{}).
		Where("parent_uri = ?", parentURI).
		Update("processed", false).Error
}

// Count returns the total number of stored comments.
func (s *CommentStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.store.DB.WithContext(ctx).Model(&models.Comment{}).Count(&count).Error
	return count, err
}

// CountProcessed returns the number of comments incorporated into a
// published annotation.
func (s *CommentStore) CountProcessed(ctx context.Context) (int64, error) {
	var count int64
	err := s.store.DB.WithContext(ctx).
		Model(&models.Comment{}).
		Where("processed = ?", true).
		Count(&count).Error
	return count, err
}
