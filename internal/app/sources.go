package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"kelp.press/curator/internal/cli"
	"kelp.press/curator/internal/db"
)

type sourceFile struct {
	Sources []sourceFileEntry `yaml:"sources"`
}

type sourceFileEntry struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Locator string `yaml:"locator"`
}

func runSources(args []string) int {
	fs := flag.NewFlagSet("sources", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	importPath := fs.String("import", "", "Import sources from a YAML file")

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

	if path := strings.TrimSpace(*importPath); path != "" {
		return importSources(ctx, rt, path)
	}
	return listSources(ctx, rt)
}

func importSources(ctx context.Context, rt *runtime, path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %q: %v\n", path, err)
		return 2
	}

	var file sourceFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse %q: %v\n", path, err)
		return 2
	}
	if len(file.Sources) == 0 {
		fmt.Fprintf(os.Stderr, "%q contains no sources\n", path)
		return 2
	}

	created, updated := 0, 0
	for i, entry := range file.Sources {
		name := strings.TrimSpace(entry.Name)
		kind := strings.TrimSpace(strings.ToLower(entry.Kind))
		locator := strings.TrimSpace(entry.Locator)
		if name == "" || kind == "" || locator == "" {
			fmt.Fprintf(os.Stderr, "sources[%d]: name, kind and locator are required\n", i)
			return 2
		}
		if !knownSourceKind(kind) {
			fmt.Fprintf(os.Stderr, "sources[%d]: unknown kind %q\n", i, kind)
			return 2
		}

		wasCreated, err := rt.store.UpsertSource(ctx, db.UpsertSourceParams{
			Name:    name,
			Kind:    kind,
			Locator: locator,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save source %q: %v\n", name, err)
			return 1
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}

	fmt.Printf("created=%d updated=%d\n", created, updated)
	return 0
}

func listSources(ctx context.Context, rt *runtime) int {
	sources, err := rt.store.ListSources(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sources: %v\n", err)
		return 1
	}

	for _, src := range sources {
		checked := "never"
		if src.LastCheckedAt != nil {
			checked = src.LastCheckedAt.UTC().Format(time.RFC3339)
		}
		state := ""
		if src.DeletedAt != nil {
			state = " (deleted)"
		}
		fmt.Printf("%-6d %-14s %-30s last_checked=%s%s\n", src.SourceID, src.Kind, src.Name, checked, state)
	}
	return 0
}

func knownSourceKind(kind string) bool {
	switch kind {
	case db.SourceKindFeed, db.SourceKindMailbox, db.SourceKindVideoChannel, db.SourceKindRepository, db.SourceKindAggregator:
		return true
	default:
		return false
	}
}
