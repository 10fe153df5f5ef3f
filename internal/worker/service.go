// Package worker provides the long-running chorus service: the HTTP
// façade, the poll scheduler, and the wiring between collector, pipeline,
// and stores.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/chorus/internal/bluesky"
	"github.com/thebtf/chorus/internal/config"
	db "github.com/thebtf/chorus/internal/db/gorm"
	"github.com/thebtf/chorus/internal/ingest"
	"github.com/thebtf/chorus/internal/llm"
	"github.com/thebtf/chorus/internal/pipeline"
	"github.com/thebtf/chorus/internal/worker/sse"
)

// Service is the chorus worker: it schedules collection and processing
// passes and exposes them over HTTP.
type Service struct {
	version        string
	config         *config.Config
	store          *db.Store
	comments       *db.CommentStore
	annotations    *db.AnnotationStore
	ledger         *db.LedgerStore
	pipeline       *pipeline.Pipeline
	collector      *ingest.Collector
	platform       bluesky.Client
	sseBroadcaster *sse.Broadcaster
	router         *chi.Mux
	httpServer     *http.Server
	ctx            context.Context
	cancel         context.CancelFunc
	startTime      time.Time
	ready          atomic.Bool
	logger         zerolog.Logger
}

// New wires a worker service from its dependencies.
func New(cfg *config.Config, store *db.Store, platform bluesky.Client,
	embedder llm.Embedder, summarizer llm.Summarizer, version string) *Service {
	comments := db.NewCommentStore(store)
	annotations := db.NewAnnotationStore(store)
	ledger := db.NewLedgerStore(store)

	pipe := pipeline.New(comments, annotations, ledger, platform, summarizer, pipeline.Policy{
		SimilarityThreshold: cfg.SimilarityThreshold,
		MinGroupSize:        cfg.MinGroupSize,
		MaxPostLength:       cfg.MaxPostLength,
		AnnotationPrefix:    cfg.AnnotationPrefix,
		RemoteTimeout:       cfg.RemoteTimeout(),
		MaxConcurrentPosts:  cfg.MaxConns,
	})
	collector := ingest.New(platform, embedder, comments, cfg.MentionFetchLimit, cfg.RemoteTimeout())

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:        version,
		config:         cfg,
		store:          store,
		comments:       comments,
		annotations:    annotations,
		ledger:         ledger,
		pipeline:       pipe,
		collector:      collector,
		platform:       platform,
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		logger:         log.With().Str("component", "worker").Logger(),
	}

	svc.setupRoutes()
	return svc
}

// setupRoutes registers all HTTP routes.
func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Post("/check", s.handleCheck)
		r.Post("/process", s.handleProcess)
		r.Post("/process/post", s.handleProcessPost)
		r.Post("/reset", s.handleReset)
		r.Get("/post/state", s.handlePostState)
		r.Get("/events", s.sseBroadcaster.HandleSSE)
	})
}

// Run starts the HTTP server and the scheduler, then blocks until ctx is
// cancelled. Shutdown drains in-flight requests before returning.
func (s *Service) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Str("version", s.version).Msg("Worker listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go s.runScheduler()
	s.ready.Store(true)

	select {
	case err := <-errCh:
		s.cancel()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	case <-s.ctx.Done():
	}

	s.ready.Store(false)
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info().Msg("Worker stopped")
	return nil
}

// Stop requests shutdown from another goroutine.
func (s *Service) Stop() {
	s.cancel()
}

// RunOnce performs a single collect-and-process pass without the HTTP
// server or scheduler. Used by the -once flag.
func (s *Service) RunOnce(ctx context.Context) error {
	if _, err := s.collector.CheckMentions(ctx); err != nil {
		return fmt.Errorf("collect mentions: %w", err)
	}
	summary, err := s.pipeline.ProcessAll(ctx)
	if err != nil {
		return fmt.Errorf("process posts: %w", err)
	}
	s.logger.Info().
		Int("eligible", summary.Eligible).
		Int("published", summary.Published).
		Int("failed", summary.Failed).
		Msg("Single pass complete")
	return nil
}
