package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/cli"
	"kelp.press/curator/internal/distribute"
	"kelp.press/curator/internal/enrich"
	"kelp.press/curator/internal/httpapi"
	"kelp.press/curator/internal/ingest"
	"kelp.press/curator/internal/queue"
)

// pipeline ties the three stages to the work queue so API-triggered
// runs execute in the background without blocking the request.
type pipeline struct {
	scheduler *ingest.Scheduler
	enricher  *enrich.Engine
	dist      *distribute.Engine
	jobs      *queue.Queue
	logger    zerolog.Logger

	enrichLimit int
	postLimit   int
}

// TriggerRun queues a full pipeline pass. Ingestion fans out as a chain
// of per-source jobs; enrichment and distribution follow as one job so
// they see everything the chain inserted.
func (p *pipeline) TriggerRun(ctx context.Context) error {
	if err := p.scheduler.EnqueueAll(ctx); err != nil {
		return err
	}
	return p.jobs.Submit(queue.Job{
		Name: "enrich-distribute",
		Run: func(jobCtx context.Context) error {
			if _, err := p.enricher.ProcessPending(jobCtx, p.enrichLimit); err != nil {
				return err
			}
			for _, name := range distribute.PlatformNames() {
				if _, err := p.dist.DistributePlatform(jobCtx, name, p.postLimit); err != nil {
					p.logger.Warn().Err(err).Str("platform", name).Msg("distribution skipped")
				}
			}
			return nil
		},
	})
}

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	queueCapacity := fs.Int("queue-capacity", 256, "Work queue capacity")
	queueWorkers := fs.Int("queue-workers", 4, "Work queue worker count")
	pollInterval := fs.Duration("poll-interval", 30*time.Minute, "Automatic pipeline run interval (0 disables)")

	if code := parseFlags(fs, envLoader, args); code >= 0 {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, code := setupRuntime(ctx)
	if code >= 0 {
		return code
	}
	defer rt.close()

	jobs := queue.New(rt.logger, *queueCapacity, *queueWorkers)
	jobs.Start(ctx)
	defer jobs.Close()

	runner := &pipeline{
		scheduler:   buildScheduler(rt, jobs),
		enricher:    buildEnrichEngine(rt),
		dist:        buildDistributeEngine(rt),
		jobs:        jobs,
		logger:      rt.logger,
		enrichLimit: enrich.DefaultBatchLimit,
		postLimit:   10,
	}

	if *pollInterval > 0 {
		go func() {
			ticker := time.NewTicker(*pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := runner.TriggerRun(ctx); err != nil {
						rt.logger.Error().Err(err).Msg("scheduled pipeline run failed to start")
					}
				}
			}
		}()
	}

	server := httpapi.NewServer(rt.store, runner, rt.logger, httpapi.Options{
		Host: rt.cfg.HTTPHost,
		Port: rt.cfg.HTTPPort,
	})
	if err := server.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}
	return 0
}
