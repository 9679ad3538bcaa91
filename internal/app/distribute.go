package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"kelp.press/curator/internal/cli"
	"kelp.press/curator/internal/distribute"
)

func runDistribute(args []string) int {
	fs := flag.NewFlagSet("distribute", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	platform := fs.String("platform", "", "Post to a single platform (default: all configured)")
	limit := fs.Int("limit", 10, "Maximum posts per platform in one pass")

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

	engine := buildDistributeEngine(rt)

	names := distribute.PlatformNames()
	if trimmed := strings.TrimSpace(*platform); trimmed != "" {
		names = []string{trimmed}
	}

	exitCode := 0
	for _, name := range names {
		stats, err := engine.DistributePlatform(ctx, name, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Distribution to %s failed: %v\n", name, err)
			exitCode = 1
			continue
		}
		fmt.Printf("platform=%s considered=%d posted=%d skipped=%d failed=%d\n",
			name, stats.Considered, stats.Posted, stats.Skipped, stats.Failed)
	}
	return exitCode
}

func runRetract(args []string) int {
	fs := flag.NewFlagSet("retract", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	articleID := fs.Int64("article-id", 0, "Article id whose post should be removed")
	platform := fs.String("platform", "", "Platform to remove the post from")

	if code := parseFlags(fs, envLoader, args); code >= 0 {
		return code
	}

	if *articleID <= 0 {
		fmt.Fprintln(os.Stderr, "--article-id is required")
		return 2
	}
	if strings.TrimSpace(*platform) == "" {
		fmt.Fprintln(os.Stderr, "--platform is required")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, code := setupRuntime(ctx)
	if code >= 0 {
		return code
	}
	defer rt.close()

	engine := buildDistributeEngine(rt)
	if err := engine.Retract(ctx, *articleID, *platform); err != nil {
		fmt.Fprintf(os.Stderr, "Retract failed: %v\n", err)
		return 1
	}

	fmt.Printf("article_id=%d platform=%s retracted\n", *articleID, strings.TrimSpace(*platform))
	return 0
}
