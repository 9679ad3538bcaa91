package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
)

var (
	// ErrNoContent means every strategy ran out of material: an empty
	// readability result or an exhausted transcript fallback chain.
	ErrNoContent = errors.New("no extractable content")
	// ErrInvalidURL means the article URL failed normalization before
	// any external call was attempted.
	ErrInvalidURL = errors.New("invalid source url")
	// ErrCloneFailed is fatal for the article; clones are not retried.
	ErrCloneFailed = errors.New("repository clone failed")
)

// Result is the outcome of a successful extraction.
type Result struct {
	Body string
	// ResolvedURL is set when redirect following landed somewhere other
	// than the stored URL.
	ResolvedURL string
}

// Extractor selects the strategy for an article by its source kind.
type Extractor struct {
	html       *HTMLExtractor
	transcript *TranscriptExtractor
	repo       *RepoExtractor
	logger     zerolog.Logger
}

func New(logger zerolog.Logger) *Extractor {
	return &Extractor{
		html:       NewHTMLExtractor(),
		transcript: NewTranscriptExtractor(),
		repo:       NewRepoExtractor(),
		logger:     logger,
	}
}

// Extract resolves body text for the article using the strategy its
// source kind calls for.
func (e *Extractor) Extract(ctx context.Context, kind string, article db.Article) (Result, error) {
	if e == nil {
		return Result{}, fmt.Errorf("extractor is not initialized")
	}

	switch kind {
	case db.SourceKindVideoChannel:
		return e.transcript.Extract(ctx, article.URL)
	case db.SourceKindRepository:
		return e.repo.Extract(ctx, article.URL)
	default:
		return e.html.Extract(ctx, article.URL)
	}
}
