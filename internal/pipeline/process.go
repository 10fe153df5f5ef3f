package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/chorus/pkg/models"
	"github.com/thebtf/chorus/pkg/similarity"
)

// Skip reasons reported by ProcessPost.
const (
	SkipLedgerClosed = "ledger_closed"
	SkipRemoteReply  = "remote_annotation_exists"
)

// GroupResult is the outcome for one emitted cluster.
type GroupResult struct {
	AnnotationID string `json:"annotation_id"`
	CommentCount int    `json:"comment_count"`
	Published    bool   `json:"published"`
	UsedFallback bool   `json:"used_fallback,omitempty"`
	Error        string `json:"error,omitempty"`
}

// PostResult is the outcome of one ProcessPost call.
type PostResult struct {
	Post      models.PostRef `json:"post"`
	Skipped   string         `json:"skipped,omitempty"`
	Groups    []GroupResult  `json:"groups,omitempty"`
	Published int            `json:"published"`
}

// ProcessPost runs the full pipeline for one post:
//
//  1. Ledger short-circuit: a PostRecord means the post is closed.
//  2. Remote reconcile: if the platform already shows an own reply, write
//     the PostRecord and stop. This heals the window between a publish
//     landing and the ledger update (crash, concurrent run).
//  3. Discard stale unposted annotations and load the post's comments.
//  4. Cluster, synthesize (fallback text on synthesis failure), truncate,
//     persist, publish each emitted group.
//  5. Successful publish marks the annotation posted and its comments
//     processed; a failed publish leaves both untouched and processing
//     continues with the remaining groups.
//  6. The PostRecord is written iff at least one publish succeeded.
//
// Calls for the same post are serialized; distinct posts run in parallel.
func (p *Pipeline) ProcessPost(ctx context.Context, ref models.PostRef) (*PostResult, error) {
	unlock := p.locks.lock(ref.URI)
	defer unlock()

	result := &PostResult{Post: ref}
	logger := p.logger.With().Str("post", ref.URI).Logger()

	// Step 1: ledger short-circuit.
	record, err := p.ledger.Get(ctx, ref.URI)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}
	if record != nil {
		logger.Debug().Msg("Post already closed, skipping")
		result.Skipped = SkipLedgerClosed
		return result, nil
	}

	// Step 2: reconcile with remote ground truth.
	rctx, cancel := p.remoteCtx(ctx)
	hasReply, err := p.platform.HasOwnReplyOn(rctx, ref)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("remote reply check: %w", err)
	}
	if hasReply {
		logger.Info().Msg("Remote already shows own annotation, closing post")
		if err := p.ledger.Upsert(ctx, models.NewPostRecord(ref, 1)); err != nil {
			return nil, fmt.Errorf("close reconciled post: %w", err)
		}
		result.Skipped = SkipRemoteReply
		return result, nil
	}

	// Step 3: drop stale unposted annotations, load comments.
	if discarded, err := p.annotations.DeleteUnpostedByParent(ctx, ref.URI); err != nil {
		return nil, fmt.Errorf("discard stale annotations: %w", err)
	} else if discarded > 0 {
		logger.Debug().Int64("count", discarded).Msg("Discarded stale unposted annotations")
	}

	comments, err := p.comments.GetByParent(ctx, ref.URI)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	// Step 4: cluster and attempt one annotation per group.
	groups := similarity.ClusterComments(comments, p.policy.SimilarityThreshold, p.policy.MinGroupSize)
	logger.Info().Int("comments", len(comments)).Int("groups", len(groups)).Msg("Clustered comments")

	for _, group := range groups {
		result.Groups = append(result.Groups, p.processGroup(ctx, ref, group, logger))
	}
	for _, g := range result.Groups {
		if g.Published {
			result.Published++
		}
	}

	// Step 6: close the post only when something was published.
	if result.Published > 0 {
		if err := p.ledger.Upsert(ctx, models.NewPostRecord(ref, result.Published)); err != nil {
			return nil, fmt.Errorf("write post record: %w", err)
		}
		logger.Info().Int("published", result.Published).Msg("Post closed")
	}

	return result, nil
}

// processGroup synthesizes, persists, and publishes one cluster's
// annotation. Failures are reported in the result, never propagated, so
// remaining groups still run.
func (p *Pipeline) processGroup(ctx context.Context, ref models.PostRef, group []*models.Comment, logger zerolog.Logger) GroupResult {
	res := GroupResult{CommentCount: len(group)}

	texts := make([]string, len(group))
	ids := make([]string, len(group))
	for i, c := range group {
		texts[i] = c.Text
		ids[i] = c.ID
	}

	rctx, cancel := p.remoteCtx(ctx)
	body, err := p.summarizer.Summarize(rctx, texts)
	cancel()
	if err != nil || body == "" {
		logger.Warn().Err(err).Msg("Synthesis failed, using fallback text")
		body = fallbackText
		res.UsedFallback = true
	}

	text := models.ComposeText(p.policy.AnnotationPrefix, body, p.policy.MaxPostLength)
	annotation := models.NewAnnotation(ref, text, ids)
	if err := p.annotations.Create(ctx, annotation); err != nil {
		res.Error = fmt.Sprintf("persist annotation: %v", err)
		return res
	}
	res.AnnotationID = annotation.ID

	rctx, cancel = p.remoteCtx(ctx)
	postedURI, err := p.platform.PublishReply(rctx, text, ref)
	cancel()
	if err != nil {
		// Step 5, failure path: keep the annotation unposted for the next
		// run to discard and recluster; comments stay unprocessed.
		logger.Warn().Err(err).Str("annotation", annotation.ID).Msg("Publish failed, leaving group for a future run")
		res.Error = fmt.Sprintf("publish: %v", err)
		return res
	}

	if err := p.annotations.MarkPosted(ctx, annotation.ID, postedURI); err != nil {
		res.Error = fmt.Sprintf("mark posted: %v", err)
		return res
	}
	if err := p.comments.MarkProcessed(ctx, ids); err != nil {
		res.Error = fmt.Sprintf("mark comments processed: %v", err)
		return res
	}

	logger.Info().Str("annotation", annotation.ID).Int("comments", len(group)).Msg("Annotation published")
	res.Published = true
	return res
}

// RunSummary aggregates one ProcessAll pass.
type RunSummary struct {
	Eligible  int          `json:"eligible"`
	Processed int          `json:"processed"`
	Published int          `json:"published"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Results   []PostResult `json:"results,omitempty"`
}

// ProcessAll runs ProcessPost for every eligible post, distinct posts in
// parallel up to MaxConcurrentPosts. Per-post failures are counted, logged,
// and never abort the run.
func (p *Pipeline) ProcessAll(ctx context.Context) (*RunSummary, error) {
	eligible, err := p.CollectEligiblePosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect eligible posts: %w", err)
	}

	summary := &RunSummary{Eligible: len(eligible)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.policy.MaxConcurrentPosts)

	for _, e := range eligible {
		ref := e.Post
		g.Go(func() error {
			result, err := p.ProcessPost(gctx, ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.logger.Error().Err(err).Str("post", ref.URI).Msg("Post processing failed")
				summary.Failed++
				return nil // unit of work abandoned for this run, retried next tick
			}
			summary.Processed++
			summary.Published += result.Published
			if result.Skipped != "" {
				summary.Skipped++
			}
			summary.Results = append(summary.Results, *result)
			return nil
		})
	}

	_ = g.Wait()
	return summary, nil
}
