// Package ingest collects mention notifications from the platform and
// turns them into stored comments ready for clustering.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/chorus/internal/bluesky"
	db "github.com/thebtf/chorus/internal/db/gorm"
	"github.com/thebtf/chorus/internal/llm"
	"github.com/thebtf/chorus/pkg/models"
)

// Collector fetches recent mentions, resolves the post each one comments
// on, embeds the comment text, and stores the result. Re-seeing a known
// reply is a no-op; each mention that fails is dropped for this run and
// picked up again on a later tick.
type Collector struct {
	platform   bluesky.Client
	embedder   llm.Embedder
	comments   *db.CommentStore
	fetchLimit int
	timeout    time.Duration
	logger     zerolog.Logger
}

// New creates a collector.
func New(platform bluesky.Client, embedder llm.Embedder, comments *db.CommentStore, fetchLimit int, timeout time.Duration) *Collector {
	if fetchLimit <= 0 {
		fetchLimit = 50
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Collector{
		platform:   platform,
		embedder:   embedder,
		comments:   comments,
		fetchLimit: fetchLimit,
		timeout:    timeout,
		logger:     log.With().Str("component", "ingest").Logger(),
	}
}

// RunStats summarizes one collection pass.
type RunStats struct {
	Seen    int `json:"seen"`
	Stored  int `json:"stored"`
	Known   int `json:"known"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// CheckMentions performs one collection pass.
func (c *Collector) CheckMentions(ctx context.Context) (*RunStats, error) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	mentions, err := c.platform.ListRecentMentions(rctx, c.fetchLimit)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}

	stats := &RunStats{Seen: len(mentions)}
	own := c.platform.OwnHandle()

	for _, m := range mentions {
		switch c.ingestOne(ctx, m, own) {
		case ingestStored:
			stats.Stored++
		case ingestKnown:
			stats.Known++
		case ingestSkipped:
			stats.Skipped++
		case ingestFailed:
			stats.Failed++
		}
	}

	c.logger.Info().
		Int("seen", stats.Seen).
		Int("stored", stats.Stored).
		Int("known", stats.Known).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("Mention collection pass complete")
	return stats, nil
}

type ingestOutcome int

const (
	ingestStored ingestOutcome = iota
	ingestKnown
	ingestSkipped
	ingestFailed
)

// ingestOne processes a single mention.
func (c *Collector) ingestOne(ctx context.Context, m bluesky.Mention, ownHandle string) ingestOutcome {
	if m.Author == ownHandle {
		return ingestSkipped
	}

	// The comment ID derives from the reply's content identifier, so a
	// previously seen reply can be skipped before spending an embedding.
	id := m.CID
	if existing, err := c.comments.GetByID(ctx, id); err != nil {
		c.logger.Warn().Err(err).Str("mention", m.URI).Msg("Comment lookup failed")
		return ingestFailed
	} else if existing != nil {
		return ingestKnown
	}

	text := StripMention(m.Text, ownHandle)
	if text == "" {
		return ingestSkipped
	}

	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	parent, err := c.platform.ResolveParentOf(rctx, models.PostRef{URI: m.URI, CID: m.CID})
	cancel()
	if err != nil {
		c.logger.Warn().Err(err).Str("mention", m.URI).Msg("Parent resolution failed")
		return ingestFailed
	}
	if parent == nil || parent.URI == m.URI {
		// Not a comment on anything: a top-level mention of the account.
		return ingestSkipped
	}

	rctx, cancel = context.WithTimeout(ctx, c.timeout)
	embedding, err := c.embedder.Embed(rctx, text)
	cancel()
	if err != nil || len(embedding) == 0 {
		c.logger.Warn().Err(err).Str("mention", m.URI).Msg("Embedding failed")
		return ingestFailed
	}

	comment := models.NewComment(id, *parent, models.PostRef{URI: m.URI, CID: m.CID},
		m.Author, text, embedding, m.IndexedAt)
	inserted, err := c.comments.InsertIfAbsent(ctx, comment)
	if err != nil {
		c.logger.Warn().Err(err).Str("mention", m.URI).Msg("Comment insert failed")
		return ingestFailed
	}
	if !inserted {
		return ingestKnown
	}

	c.logger.Debug().Str("comment", id).Str("parent", parent.URI).Msg("Comment stored")
	return ingestStored
}

// StripMention removes @handle tokens addressed to the monitored account
// and normalizes whitespace. Returns "" when nothing but the mention was
// written.
func StripMention(text, handle string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		token := strings.TrimRight(f, ".,:;!?")
		if strings.EqualFold(token, "@"+handle) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}
