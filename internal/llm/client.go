// Package llm provides the embedding and text-synthesis capabilities
// consumed by the ingest and pipeline layers.
package llm

import "context"

// Embedder produces a fixed-length vector for a text. An empty vector with
// a nil error is not returned by implementations here; failures surface as
// errors and the caller drops the unit of work.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer condenses a cluster of comment texts into one short note.
// Callers truncate the result to the platform limit regardless of what the
// backend returns.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}
