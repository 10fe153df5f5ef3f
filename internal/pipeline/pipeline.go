// Package pipeline implements the clustering-and-publication pipeline: it
// decides which stored comments belong together, whether a group earns an
// annotation, and guarantees at most one published annotation per post
// across repeated and concurrent invocations.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/chorus/internal/bluesky"
	db "github.com/thebtf/chorus/internal/db/gorm"
	"github.com/thebtf/chorus/internal/llm"
	"github.com/thebtf/chorus/pkg/models"
)

// fallbackText is published when the synthesis backend fails. An annotation
// is still attempted rather than aborting the post's processing.
const fallbackText = "Several readers left similar feedback on this post."

// Policy holds the tunable clustering and publication parameters.
type Policy struct {
	SimilarityThreshold float64
	MinGroupSize        int
	MaxPostLength       int
	AnnotationPrefix    string
	RemoteTimeout       time.Duration
	MaxConcurrentPosts  int
}

// Pipeline orchestrates clustering, synthesis, and publication. All
// mutations of the three stores go through it; processing of one post is
// serialized by a per-post mutex while distinct posts run in parallel.
type Pipeline struct {
	comments    *db.CommentStore
	annotations *db.AnnotationStore
	ledger      *db.LedgerStore
	platform    bluesky.Client
	summarizer  llm.Summarizer
	policy      Policy
	locks       keyedMutex
	logger      zerolog.Logger
}

// New creates a pipeline.
func New(comments *db.CommentStore, annotations *db.AnnotationStore, ledger *db.LedgerStore,
	platform bluesky.Client, summarizer llm.Summarizer, policy Policy) *Pipeline {
	if policy.MinGroupSize < 1 {
		policy.MinGroupSize = 1
	}
	if policy.RemoteTimeout <= 0 {
		policy.RemoteTimeout = 30 * time.Second
	}
	if policy.MaxConcurrentPosts < 1 {
		policy.MaxConcurrentPosts = 4
	}
	return &Pipeline{
		comments:    comments,
		annotations: annotations,
		ledger:      ledger,
		platform:    platform,
		summarizer:  summarizer,
		policy:      policy,
		logger:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Eligibility is one post with enough comments to attempt clustering.
type Eligibility struct {
	Post         models.PostRef `json:"post"`
	CommentCount int            `json:"comment_count"`
}

// CollectEligiblePosts groups stored comments by parent post and keeps
// posts with at least MinGroupSize comments. The ledger is not consulted
// here; ProcessPost short-circuits closed posts itself.
func (p *Pipeline) CollectEligiblePosts(ctx context.Context) ([]Eligibility, error) {
	counts, err := p.comments.CountsByParent(ctx)
	if err != nil {
		return nil, err
	}

	var eligible []Eligibility
	for _, c := range counts {
		if c.Count >= p.policy.MinGroupSize {
			eligible = append(eligible, Eligibility{
				Post:         models.PostRef{URI: c.ParentURI, CID: c.ParentCID},
				CommentCount: c.Count,
			})
		}
	}
	return eligible, nil
}

// remoteCtx bounds a remote call with the configured timeout.
func (p *Pipeline) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.policy.RemoteTimeout)
}

// keyedMutex serializes work per key while leaving distinct keys fully
// parallel. Entries are kept for the process lifetime; the key space is
// bounded by the number of posts seen.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// lock acquires the mutex for key and returns its unlock func.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
