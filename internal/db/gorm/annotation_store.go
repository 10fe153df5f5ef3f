package gorm

import (
	"context"

	"github.com/thebtf/chorus/pkg/models"
)

// AnnotationStore provides annotation-related database operations.
type AnnotationStore struct {
	store *Store
}

// NewAnnotationStore creates a new annotation store.
func NewAnnotationStore(store *Store) *AnnotationStore {
	return &AnnotationStore{store: store}
}

// Create persists a new annotation.
func (s *AnnotationStore) Create(ctx context.Context, annotation *models.Annotation) error {
	return s.store.DB.WithContext(ctx).Create(annotation).Error
}

// GetByParent retrieves all annotations for one parent post, oldest first.
func (s *AnnotationStore) GetByParent(ctx context.Context, parentURI string) ([]*models.Annotation, error) {
	var annotations []*models.Annotation
	err := s.store.DB.WithContext(ctx).
		Where("parent_uri = ?", parentURI).
		Order("created_at_epoch ASC, id ASC").
		Find(&annotations).Error
	return annotations, err
}

// MarkPosted flips the posted flag after a successful publish and records
// the remote URI of the published reply.
func (s *AnnotationStore) MarkPosted(ctx context.Context, id, postedURI string) error {
	return s.store.DB.WithContext(ctx).
		Model(&models.Annotation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"posted": true, "posted_uri": postedURI}).Error
}

// DeleteUnpostedByParent discards annotations that were persisted but never
// published for one parent post. A rerun reclusters from current comments,
// so unposted annotations from earlier runs are stale by definition.
func (s *AnnotationStore) DeleteUnpostedByParent(ctx context.Context, parentURI string) (int64, error) {
	result := s.store.DB.WithContext(ctx).
		Where("parent_uri = ? AND posted = ?", parentURI, false).
		Delete(&models.Annotation{})
	return result.RowsAffected, result.Error
}

// DeleteByParent removes all annotations for one parent post (admin reset).
func (s *AnnotationStore) DeleteByParent(ctx context.Context, parentURI string) (int64, error) {
	result := s.store.DB.WithContext(ctx).
		Where("parent_uri = ?", parentURI).
		Delete(&models.Annotation{})
	return result.RowsAffected, result.Error
}

// Count returns the total number of stored annotations.
func (s *AnnotationStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.store.DB.WithContext(ctx).Model(&models.Annotation{}).Count(&count).Error
	return count, err
}

// CountPosted returns the number of successfully published annotations.
func (s *AnnotationStore) CountPosted(ctx context.Context) (int64, error) {
	var count int64
	err := s.store.DB.WithContext(ctx).
		Model(&models.Annotation{}).
		Where("posted = ?", true).
		Count(&count).Error
	return count, err
}
