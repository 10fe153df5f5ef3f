package models

import "time"

// Comment is one reply directed at the monitored account, with the mention
// token already stripped. The ID is derived from the source reply's CID so
// re-ingesting the same reply is a no-op.
type Comment struct {
	ID             string           `gorm:"primaryKey;type:text" json:"id"`
	ParentURI      string           `gorm:"index:idx_comments_parent;not null" json:"parent_uri"`
	ParentCID      string           `gorm:"not null" json:"parent_cid"`
	URI            string           `gorm:"not null" json:"uri"`
	CID            string           `gorm:"not null" json:"cid"`
	Author         string           `gorm:"not null" json:"author"`
	Text           string           `gorm:"type:text;not null" json:"text"`
	Embedding      JSONFloat32Array `gorm:"type:text" json:"embedding"`
	Processed      bool             `gorm:"default:false;index:idx_comments_processed" json:"processed"`
	CreatedAt      string           `gorm:"not null" json:"created_at"`
	CreatedAtEpoch int64            `gorm:"index:idx_comments_created;not null" json:"created_at_epoch"`
}

// TableName sets the GORM table name.
func (Comment) TableName() string { return "comments" }

// ParentRef returns the ref of the post this comment replies to.
func (c *Comment) ParentRef() PostRef {
	return PostRef{URI: c.ParentURI, CID: c.ParentCID}
}

// NewComment builds a comment with timestamps set.
func NewComment(id string, parent, self PostRef, author, text string, embedding []float32, createdAt time.Time) *Comment {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Comment{
		ID:             id,
		ParentURI:      parent.URI,
		ParentCID:      parent.CID,
		URI:            self.URI,
		CID:            self.CID,
		Author:         author,
		Text:           text,
		Embedding:      embedding,
		CreatedAt:      createdAt.Format(time.RFC3339),
		CreatedAtEpoch: createdAt.UnixMilli(),
	}
}
