package models

import (
	"time"

	"github.com/google/uuid"
)

// Annotation is one generated summarizing note for a cluster of comments on
// one post. Posted flips true only after a successful publish; an annotation
// whose publish attempt failed is retained with Posted=false and discarded
// on the next run for its post.
type Annotation struct {
	ID               string          `gorm:"primaryKey;type:text" json:"id"`
	ParentURI        string          `gorm:"index:idx_annotations_parent;not null" json:"parent_uri"`
	ParentCID        string          `gorm:"not null" json:"parent_cid"`
	Text             string          `gorm:"type:text;not null" json:"text"`
	SourceCommentIDs JSONStringArray `gorm:"type:text" json:"source_comment_ids"`
	Posted           bool            `gorm:"default:false;index:idx_annotations_posted" json:"posted"`
	PostedURI        string          `gorm:"type:text" json:"posted_uri,omitempty"`
	CreatedAt        string          `gorm:"not null" json:"created_at"`
	CreatedAtEpoch   int64           `gorm:"index:idx_annotations_created;not null" json:"created_at_epoch"`
}

// TableName sets the GORM table name.
func (Annotation) TableName() string { return "annotations" }

// ParentRef returns the ref of the post this annotation belongs to.
func (a *Annotation) ParentRef() PostRef {
	return PostRef{URI: a.ParentURI, CID: a.ParentCID}
}

// NewAnnotation builds an annotation with a fresh ID and timestamps set.
// Text is stored as given; callers truncate via ComposeText first.
func NewAnnotation(parent PostRef, text string, sourceIDs []string) *Annotation {
	now := time.Now()
	return &Annotation{
		ID:               uuid.NewString(),
		ParentURI:        parent.URI,
		ParentCID:        parent.CID,
		Text:             text,
		SourceCommentIDs: sourceIDs,
		CreatedAt:        now.Format(time.RFC3339),
		CreatedAtEpoch:   now.UnixMilli(),
	}
}

// ComposeText prepends the annotation prefix to body and enforces the
// platform length limit in runes. When the composed text overruns, it is cut
// and ellipsized; the prefix always survives truncation.
func ComposeText(prefix, body string, limit int) string {
	text := prefix + body
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
