package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/thebtf/chorus/pkg/models"
)

// ErrResetRefused is returned when a reset would risk duplicate publication
// because the platform already shows an own reply and force was not set.
var ErrResetRefused = errors.New("post has a published annotation on the platform; use force to reset anyway")

// ResetPost removes the post's ledger entry, deletes its stored
// annotations, and clears the processed flag on its comments so the next
// run reconsiders the post from scratch.
//
// When the platform already shows an own reply, reset is refused unless
// force is set. Force is for the operator who removed the remote reply out
// of band.
func (p *Pipeline) ResetPost(ctx context.Context, ref models.PostRef, force bool) error {
	unlock := p.locks.lock(ref.URI)
	defer unlock()

	if !force {
		rctx, cancel := p.remoteCtx(ctx)
		hasReply, err := p.platform.HasOwnReplyOn(rctx, ref)
		cancel()
		if err != nil {
			return fmt.Errorf("remote reply check: %w", err)
		}
		if hasReply {
			return ErrResetRefused
		}
	}

	if err := p.ledger.Delete(ctx, ref.URI); err != nil {
		return fmt.Errorf("delete post record: %w", err)
	}
	if _, err := p.annotations.DeleteByParent(ctx, ref.URI); err != nil {
		return fmt.Errorf("delete annotations: %w", err)
	}
	if err := p.comments.ClearProcessedByParent(ctx, ref.URI); err != nil {
		return fmt.Errorf("clear processed flags: %w", err)
	}

	p.logger.Info().Str("post", ref.URI).Bool("force", force).Msg("Post reset")
	return nil
}

// PostState describes one post's pipeline state for the façade.
type PostState struct {
	Post           models.PostRef       `json:"post"`
	Closed         bool                 `json:"closed"`
	Record         *models.PostRecord   `json:"record,omitempty"`
	CommentCount   int                  `json:"comment_count"`
	ProcessedCount int                  `json:"processed_count"`
	Annotations    []*models.Annotation `json:"annotations,omitempty"`
	RemoteHasReply bool                 `json:"remote_has_reply"`
	EligibleToRun  bool                 `json:"eligible_to_run"`
}

// State reports the post's local bookkeeping alongside the remote ground
// truth.
func (p *Pipeline) State(ctx context.Context, ref models.PostRef) (*PostState, error) {
	record, err := p.ledger.Get(ctx, ref.URI)
	if err != nil {
		return nil, fmt.Errorf("ledger lookup: %w", err)
	}

	comments, err := p.comments.GetByParent(ctx, ref.URI)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}
	processed := 0
	for _, c := range comments {
		if c.Processed {
			processed++
		}
	}

	annotations, err := p.annotations.GetByParent(ctx, ref.URI)
	if err != nil {
		return nil, fmt.Errorf("load annotations: %w", err)
	}

	rctx, cancel := p.remoteCtx(ctx)
	hasReply, err := p.platform.HasOwnReplyOn(rctx, ref)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("remote reply check: %w", err)
	}

	return &PostState{
		Post:           ref,
		Closed:         record != nil,
		Record:         record,
		CommentCount:   len(comments),
		ProcessedCount: processed,
		Annotations:    annotations,
		RemoteHasReply: hasReply,
		EligibleToRun:  record == nil && len(comments) >= p.policy.MinGroupSize,
	}, nil
}
