package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"kelp.press/curator/internal/cli"
	"kelp.press/curator/internal/enrich"
)

func runEnrich(args []string) int {
	fs := flag.NewFlagSet("enrich", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Minute, "Command timeout")
	limit := fs.Int("limit", enrich.DefaultBatchLimit, "Maximum articles to enrich in one pass")

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

	engine := buildEnrichEngine(rt)
	stats, err := engine.ProcessPending(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enrichment failed: %v\n", err)
		return 1
	}

	fmt.Printf("processed=%d enriched=%d discarded=%d pruned=%d failed=%d\n",
		stats.Processed, stats.Enriched, stats.Discarded, stats.Pruned, stats.Failed)
	return 0
}
