package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "migrate":
		return runMigrate(args[1:])
	case "poll":
		return runPoll(args[1:])
	case "enrich":
		return runEnrich(args[1:])
	case "distribute":
		return runDistribute(args[1:])
	case "retract":
		return runRetract(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "sources":
		return runSources(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "curator CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  curator <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health      Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  migrate     Apply the database schema")
	fmt.Fprintln(os.Stderr, "  poll        Fetch new items from every active source")
	fmt.Fprintln(os.Stderr, "  enrich      Extract and summarize pending articles")
	fmt.Fprintln(os.Stderr, "  distribute  Post enriched articles to social platforms")
	fmt.Fprintln(os.Stderr, "  retract     Remove an article's post from a platform")
	fmt.Fprintln(os.Stderr, "  process     Run poll + enrich + distribute in sequence")
	fmt.Fprintln(os.Stderr, "  run-once    Alias for process")
	fmt.Fprintln(os.Stderr, "  sources     Import or list configured sources")
	fmt.Fprintln(os.Stderr, "  serve       Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"curator <command> -h\" for command-specific flags.")
}
