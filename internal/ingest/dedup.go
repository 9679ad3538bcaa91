package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
)

// DedupStore is the storage surface the dedup gate needs.
type DedupStore interface {
	OriginURLExists(ctx context.Context, originURL string) (bool, error)
	InsertRawArticle(ctx context.Context, params db.NewArticleParams) (int64, bool, error)
}

// Guard enforces the global origin-URL uniqueness invariant. The fast
// existence check keeps the common path cheap; the unique index behind
// InsertRawArticle is the authority when concurrent workers race, and
// losing that race is a logged skip, never an error.
type Guard struct {
	store  DedupStore
	logger zerolog.Logger
}

func NewGuard(store DedupStore, logger zerolog.Logger) *Guard {
	return &Guard{store: store, logger: logger}
}

// Admit persists the candidate as a raw article unless its origin URL
// has been seen before. Returns the new article id when inserted.
func (g *Guard) Admit(ctx context.Context, params db.NewArticleParams) (int64, bool, error) {
	if g == nil || g.store == nil {
		return 0, false, fmt.Errorf("dedup guard is not initialized")
	}

	exists, err := g.store.OriginURLExists(ctx, params.OriginURL)
	if err != nil {
		return 0, false, err
	}
	if exists {
		return 0, false, nil
	}

	articleID, inserted, err := g.store.InsertRawArticle(ctx, params)
	if err != nil {
		return 0, false, err
	}
	if !inserted {
		g.logger.Info().Str("origin_url", params.OriginURL).Msg("lost dedup race, skipping duplicate")
		return 0, false, nil
	}
	return articleID, true, nil
}
