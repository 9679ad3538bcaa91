package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
	"kelp.press/curator/internal/extract"
)

type stubEngineStore struct {
	pending []db.Article
	sources map[int64]db.Source

	bodyUpdates map[int64]string
	applied     []db.EnrichmentParams
	softDeleted []int64
	embeddings  []string
}

func newStubEngineStore(kind string, articles ...db.Article) *stubEngineStore {
	return &stubEngineStore{
		pending:     articles,
		sources:     map[int64]db.Source{1: {SourceID: 1, Kind: kind, Name: "stub source"}},
		bodyUpdates: map[int64]string{},
	}
}

func (s *stubEngineStore) ListPendingEnrichment(_ context.Context, _ int) ([]db.Article, error) {
	return s.pending, nil
}

func (s *stubEngineStore) GetSource(_ context.Context, sourceID int64) (db.Source, error) {
	src, ok := s.sources[sourceID]
	if !ok {
		return db.Source{}, db.ErrNoRows
	}
	return src, nil
}

func (s *stubEngineStore) UpdateArticleBody(_ context.Context, articleID int64, _, body, _ string) error {
	s.bodyUpdates[articleID] = body
	return nil
}

func (s *stubEngineStore) SoftDeleteArticle(_ context.Context, articleID int64, _ time.Time) error {
	s.softDeleted = append(s.softDeleted, articleID)
	return nil
}

func (s *stubEngineStore) ApplyEnrichment(_ context.Context, params db.EnrichmentParams) error {
	s.applied = append(s.applied, params)
	return nil
}

func (s *stubEngineStore) HasEmbedding(_ context.Context, _ int64, _ string) (bool, error) {
	return false, nil
}

func (s *stubEngineStore) InsertEmbedding(_ context.Context, _ int64, _, vectorLiteral string, _ time.Time) (bool, error) {
	s.embeddings = append(s.embeddings, vectorLiteral)
	return true, nil
}

type stubExtractor struct {
	result extract.Result
	err    error
}

func (e *stubExtractor) Extract(_ context.Context, _ string, _ db.Article) (extract.Result, error) {
	return e.result, e.err
}

type stubCompleter struct {
	response json.RawMessage
	err      error
}

func (c *stubCompleter) Complete(_ context.Context, _, _ string) (json.RawMessage, error) {
	return c.response, c.err
}

func (c *stubCompleter) ModelName() string { return "stub-model" }

func validResponse(isRelated bool) json.RawMessage {
	payload := map[string]any{
		"title_ko":     "한국어 제목",
		"summary_keys": []string{"핵심 한 가지"},
		"summary_detail": map[string]string{
			"introduction": "도입",
			"body":         "본문",
			"conclusion":   "결론",
		},
		"tags":       []string{"Golang", "golang", "Databases"},
		"is_related": isRelated,
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func pendingArticle(body string) db.Article {
	return db.Article{ArticleID: 42, SourceID: 1, Title: "original", Body: body}
}

func newTestEngine(store *stubEngineStore, extractor ContentExtractor, completer Completer, pruneKinds []string) *Engine {
	return NewEngine(store, extractor, completer, nil, 120, pruneKinds, "stub-embed", zerolog.Nop())
}

func TestEnrichAppliesValidResponse(t *testing.T) {
	t.Parallel()

	store := newStubEngineStore(db.SourceKindFeed, pendingArticle(longBody()))
	engine := newTestEngine(store, &stubExtractor{}, &stubCompleter{response: validResponse(true)}, nil)

	stats, err := engine.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Enriched != 1 || stats.Discarded != 0 {
		t.Fatalf("expected one enriched article, got %+v", stats)
	}
	if len(store.applied) != 1 {
		t.Fatalf("expected one applied enrichment")
	}

	applied := store.applied[0]
	if applied.TitleKo != "한국어 제목" {
		t.Fatalf("unexpected title: %q", applied.TitleKo)
	}
	if len(applied.Tags) != 2 || applied.Tags[0] != "golang" || applied.Tags[1] != "databases" {
		t.Fatalf("expected lower-cased deduplicated tags, got %v", applied.Tags)
	}
	if len(store.softDeleted) != 0 {
		t.Fatalf("did not expect a soft delete")
	}
}

func TestEnrichMalformedResponseDiscardsWithoutApplying(t *testing.T) {
	t.Parallel()

	store := newStubEngineStore(db.SourceKindFeed, pendingArticle(longBody()))
	completer := &stubCompleter{response: json.RawMessage(`{"title_ko": "제목"`)}
	engine := newTestEngine(store, &stubExtractor{}, completer, nil)

	stats, err := engine.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Discarded != 1 {
		t.Fatalf("expected discard, got %+v", stats)
	}
	// is_related is never written on a rejected response; the article
	// row is only soft-deleted.
	if len(store.applied) != 0 {
		t.Fatalf("expected no enrichment applied, got %v", store.applied)
	}
	if len(store.softDeleted) != 1 || store.softDeleted[0] != 42 {
		t.Fatalf("expected article 42 soft-deleted, got %v", store.softDeleted)
	}
}

func TestEnrichTransportErrorLeavesArticlePending(t *testing.T) {
	t.Parallel()

	store := newStubEngineStore(db.SourceKindFeed, pendingArticle(longBody()))
	completer := &stubCompleter{err: errors.New("connection refused")}
	engine := newTestEngine(store, &stubExtractor{}, completer, nil)

	stats, err := engine.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected failure counted, got %+v", stats)
	}
	if len(store.softDeleted) != 0 || len(store.applied) != 0 {
		t.Fatalf("expected article untouched on transport error")
	}
}

func TestEnrichThinBodyTriggersExtraction(t *testing.T) {
	t.Parallel()

	store := newStubEngineStore(db.SourceKindFeed, pendingArticle("short"))
	extractor := &stubExtractor{result: extract.Result{Body: longBody(), ResolvedURL: "https://example.com/final"}}
	engine := newTestEngine(store, extractor, &stubCompleter{response: validResponse(true)}, nil)

	if _, err := engine.ProcessPending(context.Background(), 10); err != nil {
		t.Fatalf("process: %v", err)
	}
	if store.bodyUpdates[42] != longBody() {
		t.Fatalf("expected extracted body stored")
	}
}

func TestEnrichExtractionFailureDiscardsArticle(t *testing.T) {
	t.Parallel()

	store := newStubEngineStore(db.SourceKindFeed, pendingArticle(""))
	extractor := &stubExtractor{err: extract.ErrNoContent}
	engine := newTestEngine(store, extractor, &stubCompleter{response: validResponse(true)}, nil)

	stats, err := engine.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Discarded != 1 {
		t.Fatalf("expected discard, got %+v", stats)
	}
	if len(store.applied) != 0 {
		t.Fatalf("expected no enrichment for unextractable article")
	}
}

func TestEnrichAutoPrunesUnrelatedFromConfiguredKinds(t *testing.T) {
	t.Parallel()

	store := newStubEngineStore(db.SourceKindMailbox, pendingArticle(longBody()))
	engine := newTestEngine(store, &stubExtractor{}, &stubCompleter{response: validResponse(false)}, []string{"mailbox"})

	stats, err := engine.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Pruned != 1 {
		t.Fatalf("expected prune, got %+v", stats)
	}
	// The enrichment result is applied first, then the row is removed.
	if len(store.applied) != 1 {
		t.Fatalf("expected enrichment applied before prune")
	}
	if len(store.softDeleted) != 1 {
		t.Fatalf("expected soft delete for pruned article")
	}
}

func TestEnrichUnrelatedFromOtherKindsIsKept(t *testing.T) {
	t.Parallel()

	store := newStubEngineStore(db.SourceKindFeed, pendingArticle(longBody()))
	engine := newTestEngine(store, &stubExtractor{}, &stubCompleter{response: validResponse(false)}, []string{"mailbox"})

	stats, err := engine.ProcessPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Pruned != 0 || stats.Enriched != 1 {
		t.Fatalf("expected kept enrichment, got %+v", stats)
	}
	if len(store.softDeleted) != 0 {
		t.Fatalf("expected no soft delete for feed article")
	}
}

func longBody() string {
	body := ""
	for i := 0; i < 10; i++ {
		body += "This sentence pads the article body far beyond the minimum content threshold. "
	}
	return body
}
