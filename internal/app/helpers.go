package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/cli"
	"kelp.press/curator/internal/config"
	"kelp.press/curator/internal/db"
	"kelp.press/curator/internal/distribute"
	"kelp.press/curator/internal/enrich"
	"kelp.press/curator/internal/extract"
	"kelp.press/curator/internal/ingest"
	"kelp.press/curator/internal/logging"
	"kelp.press/curator/internal/queue"
	"kelp.press/curator/internal/source"
)

// runtime bundles the shared pieces every command bootstraps: config,
// logger, database pool and store.
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *db.Pool
	store  *db.Store
}

func (r *runtime) close() {
	if r != nil && r.pool != nil {
		_ = r.pool.Close()
	}
}

// parseFlags finishes flag parsing and loads the env file. Returns a
// non-negative exit code when the command should stop here.
func parseFlags(fs *flag.FlagSet, envLoader *cli.EnvLoader, args []string) int {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	return -1
}

func setupRuntime(ctx context.Context) (*runtime, int) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, 1
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return nil, 1
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		store:  db.NewStore(pool),
	}, -1
}

func buildScheduler(rt *runtime, jobs *queue.Queue) *ingest.Scheduler {
	guard := ingest.NewGuard(rt.store, rt.logger)
	registry := source.NewRegistry(rt.cfg, rt.logger)
	return ingest.NewScheduler(rt.store, guard, registry, jobs, rt.cfg.InsertDelay, rt.logger)
}

func buildEnrichEngine(rt *runtime) *enrich.Engine {
	extractor := extract.New(rt.logger)
	completer := enrich.NewLLMClient(rt.cfg.LLMEndpoint, rt.cfg.LLMModel, rt.cfg.LLMAPIKey)
	embedder := enrich.NewEmbedClient(rt.cfg.EmbeddingEndpoint, rt.cfg.EmbeddingModel)
	return enrich.NewEngine(
		rt.store,
		extractor,
		completer,
		embedder,
		rt.cfg.MinContentLength,
		rt.cfg.AutoPruneKindList(),
		rt.cfg.EmbeddingModel,
		rt.logger,
	)
}

func buildDistributeEngine(rt *runtime) *distribute.Engine {
	var posters []distribute.Poster
	if rt.cfg.TwitterToken != "" {
		posters = append(posters, distribute.NewTwitterPoster(rt.cfg.TwitterAPIURL, rt.cfg.TwitterToken))
	}
	if rt.cfg.MastodonAPIURL != "" && rt.cfg.MastodonToken != "" {
		posters = append(posters, distribute.NewMastodonPoster(rt.cfg.MastodonAPIURL, rt.cfg.MastodonToken))
	}
	return distribute.NewEngine(rt.store, posters, rt.cfg.SiteBaseURL, rt.logger)
}

// pollAllSources runs a synchronous ingestion pass over every active
// source and aggregates the per-source stats.
func pollAllSources(ctx context.Context, rt *runtime, scheduler *ingest.Scheduler) (ingest.Stats, error) {
	ids, err := rt.store.ListActiveSourceIDs(ctx)
	if err != nil {
		return ingest.Stats{}, err
	}

	var total ingest.Stats
	for _, id := range ids {
		stats, err := scheduler.ProcessSource(ctx, id)
		if err != nil {
			rt.logger.Error().Err(err).Int64("source_id", id).Msg("source processing failed")
			continue
		}
		total.Fetched += stats.Fetched
		total.Inserted += stats.Inserted
		total.Skipped += stats.Skipped
	}
	return total, nil
}
