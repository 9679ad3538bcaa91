package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
	"kelp.press/curator/internal/source"
)

type stubSchedulerStore struct {
	sources map[int64]db.Source

	cursorAdvanced []int64
	inserted       []string
	existing       map[string]bool
}

func (s *stubSchedulerStore) ListActiveSourceIDs(_ context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *stubSchedulerStore) GetSource(_ context.Context, sourceID int64) (db.Source, error) {
	src, ok := s.sources[sourceID]
	if !ok {
		return db.Source{}, db.ErrNoRows
	}
	return src, nil
}

func (s *stubSchedulerStore) AdvanceSourceCursor(_ context.Context, sourceID int64, _ time.Time) error {
	s.cursorAdvanced = append(s.cursorAdvanced, sourceID)
	return nil
}

func (s *stubSchedulerStore) OriginURLExists(_ context.Context, originURL string) (bool, error) {
	return s.existing[originURL], nil
}

func (s *stubSchedulerStore) InsertRawArticle(_ context.Context, params db.NewArticleParams) (int64, bool, error) {
	s.inserted = append(s.inserted, params.OriginURL)
	return int64(len(s.inserted)), true, nil
}

type stubClient struct {
	items []source.Item
	err   error
}

func (c *stubClient) Fetch(_ context.Context, _ db.Source, _ time.Time) ([]source.Item, error) {
	return c.items, c.err
}

type stubResolver struct {
	client source.Client
}

func (r *stubResolver) ForKind(string) (source.Client, error) {
	return r.client, nil
}

func timePtr(t time.Time) *time.Time { return &t }

func feedSource(id int64, lastChecked *time.Time) db.Source {
	return db.Source{SourceID: id, Name: "feed source", Kind: db.SourceKindFeed, LastCheckedAt: lastChecked}
}

func newTestScheduler(store *stubSchedulerStore, client source.Client) *Scheduler {
	guard := NewGuard(store, zerolog.Nop())
	sched := NewScheduler(store, guard, &stubResolver{client: client}, nil, 0, zerolog.Nop())
	return sched
}

func TestProcessSourceAdvancesCursorOnEmptyFetch(t *testing.T) {
	t.Parallel()

	store := &stubSchedulerStore{sources: map[int64]db.Source{1: feedSource(1, nil)}}
	sched := newTestScheduler(store, &stubClient{})

	stats, err := sched.ProcessSource(context.Background(), 1)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Fetched != 0 {
		t.Fatalf("expected nothing fetched, got %+v", stats)
	}
	// Zero new items is still a completed pass.
	if len(store.cursorAdvanced) != 1 {
		t.Fatalf("expected cursor advanced, got %v", store.cursorAdvanced)
	}
}

func TestProcessSourceKeepsCursorOnFetchError(t *testing.T) {
	t.Parallel()

	store := &stubSchedulerStore{sources: map[int64]db.Source{1: feedSource(1, nil)}}
	sched := newTestScheduler(store, &stubClient{err: errors.New("upstream 503")})

	if _, err := sched.ProcessSource(context.Background(), 1); err != nil {
		t.Fatalf("fetch failure must not fail the pass: %v", err)
	}
	if len(store.cursorAdvanced) != 0 {
		t.Fatalf("expected cursor untouched so the window is retried, got %v", store.cursorAdvanced)
	}
}

func TestProcessSourceSkipsItemsOlderThanCursor(t *testing.T) {
	t.Parallel()

	cursor := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	store := &stubSchedulerStore{sources: map[int64]db.Source{1: feedSource(1, timePtr(cursor))}}
	client := &stubClient{items: []source.Item{
		{OriginURL: "https://example.com/old", PublishedAt: timePtr(cursor.Add(-time.Hour))},
		{OriginURL: "https://example.com/new", PublishedAt: timePtr(cursor.Add(time.Hour))},
		{OriginURL: "https://example.com/undated"},
	}}
	sched := newTestScheduler(store, client)

	stats, err := sched.ProcessSource(context.Background(), 1)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Fetched != 3 || stats.Inserted != 2 || stats.Skipped != 1 {
		t.Fatalf("expected old item skipped, got %+v", stats)
	}
	for _, url := range store.inserted {
		if url == "https://example.com/old" {
			t.Fatalf("expected pre-cursor item excluded, got %v", store.inserted)
		}
	}
}

func TestProcessSourceIgnoresCursorForRepositoryKind(t *testing.T) {
	t.Parallel()

	cursor := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	store := &stubSchedulerStore{sources: map[int64]db.Source{1: {
		SourceID:      1,
		Name:          "repo source",
		Kind:          db.SourceKindRepository,
		LastCheckedAt: timePtr(cursor),
	}}}
	client := &stubClient{items: []source.Item{
		{OriginURL: "https://github.com/acme/tool", PublishedAt: timePtr(cursor.Add(-24 * time.Hour))},
	}}
	sched := newTestScheduler(store, client)

	stats, err := sched.ProcessSource(context.Background(), 1)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Inserted != 1 {
		t.Fatalf("expected repository item admitted regardless of cursor, got %+v", stats)
	}
}

func TestProcessSourceSkipsDeletedSource(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	src := feedSource(1, nil)
	src.DeletedAt = &now
	store := &stubSchedulerStore{sources: map[int64]db.Source{1: src}}
	sched := newTestScheduler(store, &stubClient{items: []source.Item{{OriginURL: "https://example.com/a"}}})

	stats, err := sched.ProcessSource(context.Background(), 1)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stats.Fetched != 0 || len(store.cursorAdvanced) != 0 {
		t.Fatalf("expected deleted source untouched, got %+v", stats)
	}
}

func TestProcessSourcePausesBetweenInserts(t *testing.T) {
	t.Parallel()

	store := &stubSchedulerStore{sources: map[int64]db.Source{1: feedSource(1, nil)}}
	client := &stubClient{items: []source.Item{
		{OriginURL: "https://example.com/a"},
		{OriginURL: "https://example.com/b"},
	}}
	guard := NewGuard(store, zerolog.Nop())
	sched := NewScheduler(store, guard, &stubResolver{client: client}, nil, 250*time.Millisecond, zerolog.Nop())

	var pauses []time.Duration
	sched.sleep = func(d time.Duration) { pauses = append(pauses, d) }

	if _, err := sched.ProcessSource(context.Background(), 1); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(pauses) != 2 || pauses[0] != 250*time.Millisecond {
		t.Fatalf("expected a pause per insert, got %v", pauses)
	}
}
