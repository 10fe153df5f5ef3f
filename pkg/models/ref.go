package models

// PostRef identifies a post on the platform by its AT-URI and content hash.
// Both fields are required to publish a reply; the URI alone is enough to
// look a post up locally.
type PostRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// IsZero reports whether the ref carries no URI.
func (r PostRef) IsZero() bool {
	return r.URI == ""
}
