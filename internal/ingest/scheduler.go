package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
	"kelp.press/curator/internal/globaltime"
	"kelp.press/curator/internal/queue"
	"kelp.press/curator/internal/source"
)

// SchedulerStore is the storage surface the scheduler needs.
type SchedulerStore interface {
	ListActiveSourceIDs(ctx context.Context) ([]int64, error)
	GetSource(ctx context.Context, sourceID int64) (db.Source, error)
	AdvanceSourceCursor(ctx context.Context, sourceID int64, checkedAt time.Time) error
}

// ClientResolver resolves the fetch client for a stored source kind.
type ClientResolver interface {
	ForKind(kind string) (source.Client, error)
}

// Stats counts one processing pass over a single source.
type Stats struct {
	Fetched  int
	Inserted int
	Skipped  int
}

// Scheduler drives one source at a time through fetch → dedup → insert
// and advances the per-source cursor. The remaining source ids are
// re-submitted as a fresh job instead of looping in-process, so other
// queued work interleaves between chain links.
type Scheduler struct {
	store    SchedulerStore
	guard    *Guard
	resolver ClientResolver
	jobs     *queue.Queue
	logger   zerolog.Logger

	insertDelay time.Duration
	sleep       func(time.Duration)
}

func NewScheduler(
	store SchedulerStore,
	guard *Guard,
	resolver ClientResolver,
	jobs *queue.Queue,
	insertDelay time.Duration,
	logger zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		store:       store,
		guard:       guard,
		resolver:    resolver,
		jobs:        jobs,
		logger:      logger,
		insertDelay: insertDelay,
		sleep:       time.Sleep,
	}
}

// EnqueueAll submits a chain job covering every active source.
func (s *Scheduler) EnqueueAll(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("ingestion scheduler is not initialized")
	}

	ids, err := s.store.ListActiveSourceIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.submitChain(ids)
}

func (s *Scheduler) submitChain(ids []int64) error {
	return s.jobs.Submit(queue.Job{
		Name: "ingest-chain",
		Run: func(ctx context.Context) error {
			return s.ProcessChain(ctx, ids)
		},
	})
}

// ProcessChain handles the head of the id list and defers the tail.
// An empty list is the terminal state.
func (s *Scheduler) ProcessChain(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	head, tail := ids[0], ids[1:]
	if _, err := s.ProcessSource(ctx, head); err != nil {
		// The chain continues past a broken source; the failure has
		// already been logged with its context.
		s.logger.Error().Err(err).Int64("source_id", head).Msg("source processing failed")
	}

	if len(tail) == 0 {
		return nil
	}
	return s.submitChain(tail)
}

// ProcessSource runs one full pass over a single source. The cursor
// advances to now even when the pass finds nothing new; only a fetch
// failure leaves it untouched.
func (s *Scheduler) ProcessSource(ctx context.Context, sourceID int64) (Stats, error) {
	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			s.logger.Warn().Int64("source_id", sourceID).Msg("source disappeared, skipping")
			return Stats{}, nil
		}
		return Stats{}, err
	}
	if src.DeletedAt != nil {
		return Stats{}, nil
	}

	client, err := s.resolver.ForKind(src.Kind)
	if err != nil {
		return Stats{}, err
	}

	var cursor time.Time
	if src.LastCheckedAt != nil {
		cursor = src.LastCheckedAt.UTC()
	}

	items, err := client.Fetch(ctx, src, cursor)
	if err != nil {
		// Skip the cursor update so the window is retried, but do not
		// fail the chain.
		s.logger.Error().Err(err).Str("source", src.Name).Msg("fetch failed, cursor not advanced")
		return Stats{}, nil
	}

	var stats Stats
	for _, item := range items {
		stats.Fetched++

		if cursorApplies(src.Kind) && item.PublishedAt != nil && !cursor.IsZero() && item.PublishedAt.Before(cursor) {
			stats.Skipped++
			continue
		}

		_, inserted, err := s.guard.Admit(ctx, db.NewArticleParams{
			SourceID:    src.SourceID,
			OriginURL:   item.OriginURL,
			Title:       item.Title,
			PublishedAt: item.PublishedAt,
		})
		if err != nil {
			s.logger.Error().Err(err).Str("origin_url", item.OriginURL).Msg("insert failed, continuing batch")
			continue
		}
		if !inserted {
			stats.Skipped++
			continue
		}
		stats.Inserted++

		// Upstream etiquette: one insert per delay interval.
		if s.insertDelay > 0 {
			s.sleep(s.insertDelay)
		}
	}

	if err := s.store.AdvanceSourceCursor(ctx, src.SourceID, globaltime.UTC()); err != nil {
		return stats, err
	}

	s.logger.Info().
		Str("source", src.Name).
		Int("fetched", stats.Fetched).
		Int("inserted", stats.Inserted).
		Int("skipped", stats.Skipped).
		Msg("source pass complete")
	return stats, nil
}

// cursorApplies reports whether a kind's already-seen semantics compare
// publish times against the cursor. Repository and aggregator sources
// have no time cursor; they rely purely on URL dedup.
func cursorApplies(kind string) bool {
	switch kind {
	case db.SourceKindFeed, db.SourceKindVideoChannel, db.SourceKindMailbox:
		return true
	default:
		return false
	}
}
