package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
)

type stubDedupStore struct {
	existing map[string]bool
	raceLost bool
	checkErr error

	inserted []string
	nextID   int64
}

func (s *stubDedupStore) OriginURLExists(_ context.Context, originURL string) (bool, error) {
	if s.checkErr != nil {
		return false, s.checkErr
	}
	return s.existing[originURL], nil
}

func (s *stubDedupStore) InsertRawArticle(_ context.Context, params db.NewArticleParams) (int64, bool, error) {
	if s.raceLost {
		return 0, false, nil
	}
	s.nextID++
	s.inserted = append(s.inserted, params.OriginURL)
	return s.nextID, true, nil
}

func TestAdmitInsertsNewOriginURL(t *testing.T) {
	t.Parallel()

	store := &stubDedupStore{}
	guard := NewGuard(store, zerolog.Nop())

	id, inserted, err := guard.Admit(context.Background(), db.NewArticleParams{OriginURL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !inserted || id != 1 {
		t.Fatalf("expected insert with id 1, got id=%d inserted=%t", id, inserted)
	}
}

func TestAdmitSkipsKnownOriginURL(t *testing.T) {
	t.Parallel()

	store := &stubDedupStore{existing: map[string]bool{"https://example.com/a": true}}
	guard := NewGuard(store, zerolog.Nop())

	_, inserted, err := guard.Admit(context.Background(), db.NewArticleParams{OriginURL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if inserted {
		t.Fatalf("expected known url skipped")
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no insert attempt recorded as success")
	}
}

func TestAdmitLostRaceIsSkipNotError(t *testing.T) {
	t.Parallel()

	// The existence check said new, but a concurrent worker inserted the
	// same origin url first. The unique index wins; the caller just sees
	// a skip.
	store := &stubDedupStore{raceLost: true}
	guard := NewGuard(store, zerolog.Nop())

	id, inserted, err := guard.Admit(context.Background(), db.NewArticleParams{OriginURL: "https://example.com/a"})
	if err != nil {
		t.Fatalf("expected lost race to not error, got %v", err)
	}
	if inserted || id != 0 {
		t.Fatalf("expected skip, got id=%d inserted=%t", id, inserted)
	}
}

func TestAdmitPropagatesStoreError(t *testing.T) {
	t.Parallel()

	store := &stubDedupStore{checkErr: errors.New("connection lost")}
	guard := NewGuard(store, zerolog.Nop())

	if _, _, err := guard.Admit(context.Background(), db.NewArticleParams{OriginURL: "https://example.com/a"}); err == nil {
		t.Fatalf("expected store error to surface")
	}
}
