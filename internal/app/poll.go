package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"kelp.press/curator/internal/cli"
)

func runPoll(args []string) int {
	fs := flag.NewFlagSet("poll", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 15*time.Minute, "Command timeout")
	sourceID := fs.Int64("source-id", 0, "Poll a single source instead of all active sources")

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

	if *sourceID > 0 {
		stats, err := scheduler.ProcessSource(ctx, *sourceID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
			return 1
		}
		fmt.Printf("fetched=%d inserted=%d skipped=%d\n", stats.Fetched, stats.Inserted, stats.Skipped)
		return 0
	}

	stats, err := pollAllSources(ctx, rt, scheduler)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Poll failed: %v\n", err)
		return 1
	}
	fmt.Printf("fetched=%d inserted=%d skipped=%d\n", stats.Fetched, stats.Inserted, stats.Skipped)
	return 0
}
