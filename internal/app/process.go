package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"kelp.press/curator/internal/cli"
	"kelp.press/curator/internal/distribute"
	"kelp.press/curator/internal/enrich"
)

// runProcess runs the full pipeline once: poll every source, enrich
// what arrived, then post what became distributable.
func runProcess(args []string) int {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 45*time.Minute, "Command timeout")
	enrichLimit := fs.Int("enrich-limit", enrich.DefaultBatchLimit, "Maximum articles to enrich")
	postLimit := fs.Int("post-limit", 10, "Maximum posts per platform")

	if code := parseFlags(fs, envLoader, args); code >= 0 {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, code := setupRuntime(ctx)
	if code >= 0 {
		return code
	}
	defer rt.close()

	scheduler := buildScheduler(rt, nil)
	pollStats, err := pollAllSources(ctx, rt, scheduler)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
		return 1
	}
	fmt.Printf("poll: fetched=%d inserted=%d skipped=%d\n", pollStats.Fetched, pollStats.Inserted, pollStats.Skipped)

	engine := buildEnrichEngine(rt)
	enrichStats, err := engine.ProcessPending(ctx, *enrichLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enrichment failed: %v\n", err)
		return 1
	}
	fmt.Printf("enrich: processed=%d enriched=%d discarded=%d pruned=%d failed=%d\n",
		enrichStats.Processed, enrichStats.Enriched, enrichStats.Discarded, enrichStats.Pruned, enrichStats.Failed)

	dist := buildDistributeEngine(rt)
	exitCode := 0
	for _, name := range distribute.PlatformNames() {
		stats, err := dist.DistributePlatform(ctx, name, *postLimit)
		if err != nil {
			// A platform without credentials is a skip, not a failure.
			rt.logger.Warn().Err(err).Str("platform", name).Msg("distribution skipped")
			continue
		}
		fmt.Printf("distribute: platform=%s considered=%d posted=%d skipped=%d failed=%d\n",
			name, stats.Considered, stats.Posted, stats.Skipped, stats.Failed)
	}
	return exitCode
}
