package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"kelp.press/curator/internal/cli"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")

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

	if err := rt.pool.DB().PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Database ping failed: %v\n", err)
		return 1
	}

	fmt.Println("ok")
	return 0
}

func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 60*time.Second, "Command timeout")

	if code := parseFlags(fs, envLoader, args); code >= 0 {
		return code
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Connecting runs the schema migration.
	rt, code := setupRuntime(ctx)
	if code >= 0 {
		return code
	}
	defer rt.close()

	fmt.Println("schema is up to date")
	return 0
}
