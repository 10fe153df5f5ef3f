package worker

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/chorus/internal/pipeline"
	"github.com/thebtf/chorus/internal/worker/sse"
	"github.com/thebtf/chorus/pkg/models"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports liveness and readiness.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !s.ready.Load() {
		status = "starting"
		code = http.StatusServiceUnavailable
	}
	if err := s.store.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleStats reports store counts and connection state.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comments, err := s.comments.Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	processed, err := s.comments.CountProcessed(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	annotations, err := s.annotations.Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	posted, err := s.annotations.CountPosted(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	closed, err := s.ledger.Count(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	eligible, err := s.pipeline.CollectEligiblePosts(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"comments":           comments,
		"comments_processed": processed,
		"annotations":        annotations,
		"annotations_posted": posted,
		"posts_closed":       closed,
		"eligible_posts":     eligible,
		"sse_clients":        s.sseBroadcaster.ClientCount(),
		"handle":             s.platform.OwnHandle(),
	})
}

// handleCheck triggers one mention collection pass.
func (s *Service) handleCheck(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collector.CheckMentions(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.sseBroadcaster.Broadcast(sse.NewEvent("mentions_checked", stats))
	writeJSON(w, http.StatusOK, stats)
}

// handleProcess runs the pipeline over every eligible post.
func (s *Service) handleProcess(w http.ResponseWriter, r *http.Request) {
	summary, err := s.pipeline.ProcessAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sseBroadcaster.Broadcast(sse.NewEvent("run_complete", summary))
	writeJSON(w, http.StatusOK, summary)
}

// postRequest is the body for post-scoped operations.
type postRequest struct {
	URI   string `json:"uri"`
	CID   string `json:"cid"`
	Force bool   `json:"force,omitempty"`
}

func decodePostRequest(w http.ResponseWriter, r *http.Request) (*postRequest, bool) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if req.URI == "" {
		writeError(w, http.StatusBadRequest, "uri is required")
		return nil, false
	}
	return &req, true
}

// handleProcessPost runs the pipeline for a single post.
func (s *Service) handleProcessPost(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}

	result, err := s.pipeline.ProcessPost(r.Context(), models.PostRef{URI: req.URI, CID: req.CID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sseBroadcaster.Broadcast(sse.NewEvent("post_processed", result))
	writeJSON(w, http.StatusOK, result)
}

// handleReset clears a post's local state so the next run starts fresh.
// Returns 409 when the platform still shows a published annotation and
// force was not set.
func (s *Service) handleReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePostRequest(w, r)
	if !ok {
		return
	}

	ref := models.PostRef{URI: req.URI, CID: req.CID}
	if err := s.pipeline.ResetPost(r.Context(), ref, req.Force); err != nil {
		if errors.Is(err, pipeline.ErrResetRefused) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sseBroadcaster.Broadcast(sse.NewEvent("post_reset", map[string]interface{}{
		"uri":   req.URI,
		"force": req.Force,
	}))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "uri": req.URI})
}

// handlePostState reports one post's local and remote state.
func (s *Service) handlePostState(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		writeError(w, http.StatusBadRequest, "uri query parameter is required")
		return
	}
	cid := r.URL.Query().Get("cid")

	state, err := s.pipeline.State(r.Context(), models.PostRef{URI: uri, CID: cid})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}
