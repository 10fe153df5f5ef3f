package models

import "time"

// PostRecord marks a parent post as fully handled. Its presence means no
// further clustering or publication runs for that post until an explicit
// reset removes it.
type PostRecord struct {
	PostURI          string `gorm:"primaryKey;type:text" json:"post_uri"`
	PostCID          string `gorm:"not null" json:"post_cid"`
	AnnotationCount  int    `gorm:"default:0" json:"annotation_count"`
	ProcessedAt      string `gorm:"not null" json:"processed_at"`
	ProcessedAtEpoch int64  `gorm:"index:idx_post_records_processed;not null" json:"processed_at_epoch"`
}

// TableName sets the GORM table name.
func (PostRecord) TableName() string { return "post_records" }

// NewPostRecord builds a ledger entry with timestamps set.
func NewPostRecord(ref PostRef, annotationCount int) *PostRecord {
	now := time.Now()
	return &PostRecord{
		PostURI:          ref.URI,
		PostCID:          ref.CID,
		AnnotationCount:  annotationCount,
		ProcessedAt:      now.Format(time.RFC3339),
		ProcessedAtEpoch: now.UnixMilli(),
	}
}
