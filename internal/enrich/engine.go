package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
	"kelp.press/curator/internal/extract"
	"kelp.press/curator/internal/globaltime"
	"kelp.press/curator/internal/langdetect"
	enrichmentschema "kelp.press/curator/schema"
)

const (
	DefaultBatchLimit       = 20
	DefaultMinContentLength = 120

	maxTagsPerArticle = 3
)

// EngineStore is the storage surface the enrichment engine needs.
type EngineStore interface {
	ListPendingEnrichment(ctx context.Context, limit int) ([]db.Article, error)
	GetSource(ctx context.Context, sourceID int64) (db.Source, error)
	UpdateArticleBody(ctx context.Context, articleID int64, resolvedURL, body, language string) error
	SoftDeleteArticle(ctx context.Context, articleID int64, deletedAt time.Time) error
	ApplyEnrichment(ctx context.Context, params db.EnrichmentParams) error
	HasEmbedding(ctx context.Context, articleID int64, modelName string) (bool, error)
	InsertEmbedding(ctx context.Context, articleID int64, modelName, vectorLiteral string, embeddedAt time.Time) (bool, error)
}

// Completer produces raw enrichment JSON for an article.
type Completer interface {
	Complete(ctx context.Context, title, body string) (json.RawMessage, error)
	ModelName() string
}

// Embedder turns text into a vector literal.
type Embedder interface {
	Embed(ctx context.Context, text string) (string, error)
}

// ContentExtractor resolves article body text by source kind.
type ContentExtractor interface {
	Extract(ctx context.Context, kind string, article db.Article) (extract.Result, error)
}

// Stats counts one enrichment pass.
type Stats struct {
	Processed int
	Enriched  int
	Discarded int
	Pruned    int
	Failed    int
}

// Engine walks pending articles through extract → complete → apply.
// Transport failures leave the article pending for the next pass;
// empty content and rejected model output discard it.
type Engine struct {
	store      EngineStore
	extractor  ContentExtractor
	completer  Completer
	embedder   Embedder
	logger     zerolog.Logger
	embedModel string

	minContentLength int
	autoPruneKinds   map[string]struct{}
}

func NewEngine(
	store EngineStore,
	extractor ContentExtractor,
	completer Completer,
	embedder Embedder,
	minContentLength int,
	autoPruneKinds []string,
	embedModel string,
	logger zerolog.Logger,
) *Engine {
	if minContentLength <= 0 {
		minContentLength = DefaultMinContentLength
	}
	pruneSet := make(map[string]struct{}, len(autoPruneKinds))
	for _, kind := range autoPruneKinds {
		kind = strings.TrimSpace(strings.ToLower(kind))
		if kind != "" {
			pruneSet[kind] = struct{}{}
		}
	}
	return &Engine{
		store:            store,
		extractor:        extractor,
		completer:        completer,
		embedder:         embedder,
		logger:           logger,
		embedModel:       embedModel,
		minContentLength: minContentLength,
		autoPruneKinds:   pruneSet,
	}
}

// ProcessPending enriches up to limit pending articles.
func (e *Engine) ProcessPending(ctx context.Context, limit int) (Stats, error) {
	if e == nil || e.store == nil {
		return Stats{}, fmt.Errorf("enrichment engine is not initialized")
	}
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	articles, err := e.store.ListPendingEnrichment(ctx, limit)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, article := range articles {
		stats.Processed++
		outcome, err := e.processOne(ctx, article)
		if err != nil {
			stats.Failed++
			e.logger.Error().Err(err).Int64("article_id", article.ArticleID).Msg("enrichment failed, article stays pending")
			continue
		}
		switch outcome {
		case outcomeEnriched:
			stats.Enriched++
		case outcomeDiscarded:
			stats.Discarded++
		case outcomePruned:
			stats.Enriched++
			stats.Pruned++
		}
	}

	e.logger.Info().
		Str("model", e.completer.ModelName()).
		Int("processed", stats.Processed).
		Int("enriched", stats.Enriched).
		Int("discarded", stats.Discarded).
		Int("pruned", stats.Pruned).
		Int("failed", stats.Failed).
		Msg("enrichment pass complete")
	return stats, nil
}

type outcome int

const (
	outcomeEnriched outcome = iota
	outcomeDiscarded
	outcomePruned
)

func (e *Engine) processOne(ctx context.Context, article db.Article) (outcome, error) {
	src, err := e.store.GetSource(ctx, article.SourceID)
	if err != nil {
		return 0, fmt.Errorf("load source for article_id=%d: %w", article.ArticleID, err)
	}

	body := article.Body
	if e.needsContent(body) {
		result, err := e.extractor.Extract(ctx, src.Kind, article)
		if err != nil {
			// Nothing extractable means the article never becomes
			// summarizable; it is removed rather than retried forever.
			e.logger.Warn().Err(err).Int64("article_id", article.ArticleID).Msg("extraction failed, discarding article")
			if delErr := e.store.SoftDeleteArticle(ctx, article.ArticleID, globaltime.UTC()); delErr != nil {
				return 0, delErr
			}
			return outcomeDiscarded, nil
		}

		body = result.Body
		language := langdetect.DetectISO6391(body)
		if err := e.store.UpdateArticleBody(ctx, article.ArticleID, result.ResolvedURL, body, language); err != nil {
			return 0, err
		}
	}

	raw, err := e.completer.Complete(ctx, article.Title, body)
	if err != nil {
		// Transport and endpoint errors leave the article pending.
		return 0, fmt.Errorf("complete enrichment: %w", err)
	}

	result, err := enrichmentschema.ValidateEnrichmentPayload(raw)
	if err != nil {
		// The model produced garbage; retrying the same input rarely
		// helps. The article is discarded with is_related untouched.
		e.logger.Warn().Err(err).Int64("article_id", article.ArticleID).Msg("model response rejected, discarding article")
		if delErr := e.store.SoftDeleteArticle(ctx, article.ArticleID, globaltime.UTC()); delErr != nil {
			return 0, delErr
		}
		return outcomeDiscarded, nil
	}

	params := db.EnrichmentParams{
		ArticleID:         article.ArticleID,
		TitleKo:           strings.TrimSpace(result.TitleKo),
		SummaryKeys:       trimAll(result.SummaryKeys),
		SummaryIntro:      NormalizeMarkdown(result.SummaryDetail.Introduction),
		SummaryBody:       NormalizeMarkdown(result.SummaryDetail.Body),
		SummaryConclusion: NormalizeMarkdown(result.SummaryDetail.Conclusion),
		Tags:              normalizeTags(result.Tags),
		IsRelated:         result.IsRelated,
	}
	if err := e.store.ApplyEnrichment(ctx, params); err != nil {
		return 0, err
	}

	e.embedBestEffort(ctx, article.ArticleID, params.TitleKo, body)

	if !result.IsRelated && e.shouldAutoPrune(src.Kind) {
		if err := e.store.SoftDeleteArticle(ctx, article.ArticleID, globaltime.UTC()); err != nil {
			return 0, err
		}
		return outcomePruned, nil
	}
	return outcomeEnriched, nil
}

func (e *Engine) needsContent(body string) bool {
	return len(strings.TrimSpace(body)) < e.minContentLength
}

// shouldAutoPrune reports whether unrelated articles from this source
// kind are removed instead of merely marked. High-volume kinds keep the
// table from filling with off-topic rows.
func (e *Engine) shouldAutoPrune(kind string) bool {
	_, ok := e.autoPruneKinds[strings.ToLower(kind)]
	return ok
}

// embedBestEffort records an embedding when the service is reachable.
// Failures are logged and never affect the enrichment outcome.
func (e *Engine) embedBestEffort(ctx context.Context, articleID int64, title, body string) {
	if e.embedder == nil {
		return
	}

	exists, err := e.store.HasEmbedding(ctx, articleID, e.embedModel)
	if err != nil || exists {
		return
	}

	input := strings.TrimSpace(title)
	if trimmedBody := strings.TrimSpace(body); trimmedBody != "" {
		if input == "" {
			input = trimmedBody
		} else {
			input = input + "\n\n" + trimmedBody
		}
	}
	if input == "" {
		return
	}

	vectorLiteral, err := e.embedder.Embed(ctx, input)
	if err != nil {
		e.logger.Warn().Err(err).Int64("article_id", articleID).Msg("embedding skipped")
		return
	}
	if _, err := e.store.InsertEmbedding(ctx, articleID, e.embedModel, vectorLiteral, globaltime.UTC()); err != nil {
		e.logger.Warn().Err(err).Int64("article_id", articleID).Msg("embedding insert failed")
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// normalizeTags lower-cases, trims, de-duplicates and caps the tag set.
func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := strings.ToLower(strings.TrimSpace(tag))
		if normalized == "" {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
		if len(out) == maxTagsPerArticle {
			break
		}
	}
	return out
}
