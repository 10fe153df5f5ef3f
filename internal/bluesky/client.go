// Package bluesky provides the platform capability consumed by the
// pipeline: session login, mention listing, thread inspection, and reply
// publication against an AT-proto PDS.
package bluesky

import (
	"context"
	"time"

	"github.com/thebtf/chorus/pkg/models"
)

// Mention is one inbound notification directed at the monitored account.
// Text is the raw post text, mention token included; stripping is the
// ingest layer's job.
type Mention struct {
	URI       string
	CID       string
	Author    string
	Text      string
	IndexedAt time.Time
}

// Client is the platform capability interface. The production
// implementation is XRPCClient; tests substitute fakes.
type Client interface {
	// Login establishes a session. Must be called before any other method.
	Login(ctx context.Context) error

	// ListRecentMentions returns the most recent mention notifications.
	ListRecentMentions(ctx context.Context, limit int) ([]Mention, error)

	// ResolveParentOf walks the reply's ancestor chain and returns the root
	// post the reply is commenting on. Returns nil (no error) when the walk
	// cannot determine a root.
	ResolveParentOf(ctx context.Context, ref models.PostRef) (*models.PostRef, error)

	// PublishReply posts text as a reply under parent and returns the URI
	// of the created record.
	PublishReply(ctx context.Context, text string, parent models.PostRef) (string, error)

	// HasOwnReplyOn reports whether the monitored account already has a
	// direct reply under the given post. This is the pipeline's remote
	// ground-truth check against duplicate annotations.
	HasOwnReplyOn(ctx context.Context, parent models.PostRef) (bool, error)

	// OwnHandle returns the monitored account's handle.
	OwnHandle() string
}
