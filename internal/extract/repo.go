package extract

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	repoCloneTimeout = 90 * time.Second

	// Documentation collection caps. One runaway file must not crowd
	// out the rest of the snapshot.
	repoDocFileByteLimit  = 64 * 1024
	repoDocTotalByteLimit = 256 * 1024

	repoTreeMaxDepth   = 2
	repoLogCommitCount = 10
)

// RepoExtractor snapshots a repository into a single text document:
// docs, a shallow file tree, detected project kind with its config
// files, and recent history. The clone is shallow and discarded.
type RepoExtractor struct {
	GitPath      string
	CloneTimeout time.Duration
}

func NewRepoExtractor() *RepoExtractor {
	return &RepoExtractor{GitPath: "git", CloneTimeout: repoCloneTimeout}
}

func (e *RepoExtractor) Extract(ctx context.Context, rawURL string) (Result, error) {
	repoURL := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(repoURL)
	if err != nil || !parsed.IsAbs() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	workDir, err := os.MkdirTemp("", "curator-repo-*")
	if err != nil {
		return Result{}, fmt.Errorf("create clone dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	timeout := e.CloneTimeout
	if timeout <= 0 {
		timeout = repoCloneTimeout
	}
	cloneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clone := exec.CommandContext(cloneCtx, e.git(),
		"clone", "--depth", "1", "--single-branch", "--no-tags", repoURL, workDir)
	if out, err := clone.CombinedOutput(); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %s", ErrCloneFailed, err, firstLine(string(out)))
	}

	var sections []string

	docs, err := collectDocs(workDir)
	if err == nil && docs != "" {
		sections = append(sections, "## Documentation\n\n"+docs)
	}

	tree, err := renderTree(workDir, repoTreeMaxDepth)
	if err == nil && tree != "" {
		sections = append(sections, "## File Tree\n\n"+tree)
	}

	if kind, configs := detectProjectKind(workDir); kind != "" {
		section := "## Project Kind\n\n" + kind
		if configs != "" {
			section += "\n\n" + configs
		}
		sections = append(sections, section)
	}

	if log, err := e.recentLog(ctx, workDir); err == nil && log != "" {
		sections = append(sections, "## Recent Commits\n\n"+log)
	}

	if len(sections) == 0 {
		return Result{}, fmt.Errorf("repository %s: %w", repoURL, ErrNoContent)
	}
	return Result{Body: strings.Join(sections, "\n\n")}, nil
}

func (e *RepoExtractor) git() string {
	if e.GitPath != "" {
		return e.GitPath
	}
	return "git"
}

func (e *RepoExtractor) recentLog(ctx context.Context, workDir string) (string, error) {
	log := exec.CommandContext(ctx, e.git(), "-C", workDir,
		"log", "-n", fmt.Sprint(repoLogCommitCount), "--date=short",
		"--pretty=format:%ad %h %s")
	out, err := log.Output()
	if err != nil {
		return "", fmt.Errorf("git log: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

var docFileNames = map[string]struct{}{
	"license":      {},
	"license.md":   {},
	"license.txt":  {},
	"copying":      {},
	"notice":       {},
	"contributing": {},
	"changelog":    {},
}

var docFileExtensions = map[string]struct{}{
	".md":       {},
	".markdown": {},
	".rst":      {},
	".adoc":     {},
	".txt":      {},
}

func isDocFile(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := docFileNames[lower]; ok {
		return true
	}
	base := strings.TrimSuffix(lower, filepath.Ext(lower))
	if _, ok := docFileNames[base]; ok {
		return true
	}
	_, ok := docFileExtensions[filepath.Ext(lower)]
	return ok
}

// collectDocs gathers root-level documentation files under the per-file
// and cumulative byte caps. README sorts first so it survives the caps.
func collectDocs(workDir string) (string, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if isDocFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		iReadme := strings.HasPrefix(strings.ToLower(names[i]), "readme")
		jReadme := strings.HasPrefix(strings.ToLower(names[j]), "readme")
		if iReadme != jReadme {
			return iReadme
		}
		return names[i] < names[j]
	})

	var parts []string
	var total int
	for _, name := range names {
		if total >= repoDocTotalByteLimit {
			break
		}
		raw, err := os.ReadFile(filepath.Join(workDir, name))
		if err != nil {
			continue
		}
		if len(raw) > repoDocFileByteLimit {
			raw = raw[:repoDocFileByteLimit]
		}
		remaining := repoDocTotalByteLimit - total
		if len(raw) > remaining {
			raw = raw[:remaining]
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			continue
		}
		total += len(text)
		parts = append(parts, "### "+name+"\n\n"+text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// renderTree lists the repository layout down to maxDepth, skipping
// hidden entries.
func renderTree(workDir string, maxDepth int) (string, error) {
	var lines []string
	err := filepath.WalkDir(workDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == workDir {
			return nil
		}
		rel, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(entry.Name(), ".") {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		if depth > maxDepth {
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		name := filepath.ToSlash(rel)
		if entry.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}

// projectMarkers maps a marker file to the project kind it indicates,
// in priority order: the first hit wins, so more specific markers come
// before generic ones.
var projectMarkers = []struct {
	marker string
	kind   string
}{
	{"go.mod", "Go"},
	{"Cargo.toml", "Rust"},
	{"pyproject.toml", "Python"},
	{"requirements.txt", "Python"},
	{"Gemfile", "Ruby"},
	{"pom.xml", "Java"},
	{"build.gradle", "Java"},
	{"build.gradle.kts", "Kotlin"},
	{"package.json", "JavaScript"},
}

// kindConfigFiles are the config files worth inlining per kind, plus
// manifests that apply to any project.
var kindConfigFiles = map[string][]string{
	"Go":         {"go.mod"},
	"Rust":       {"Cargo.toml"},
	"Python":     {"pyproject.toml", "requirements.txt"},
	"Ruby":       {"Gemfile"},
	"Java":       {"pom.xml", "build.gradle"},
	"Kotlin":     {"build.gradle.kts"},
	"JavaScript": {"package.json"},
}

var universalManifests = []string{"Dockerfile", "Makefile", "docker-compose.yml"}

func detectProjectKind(workDir string) (string, string) {
	var kind string
	for _, candidate := range projectMarkers {
		if fileExists(filepath.Join(workDir, candidate.marker)) {
			kind = candidate.kind
			break
		}
	}
	if kind == "" {
		return "", ""
	}

	names := append([]string{}, kindConfigFiles[kind]...)
	names = append(names, universalManifests...)

	var parts []string
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(workDir, name))
		if err != nil {
			continue
		}
		if len(raw) > repoDocFileByteLimit {
			raw = raw[:repoDocFileByteLimit]
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			continue
		}
		parts = append(parts, "### "+name+"\n\n```\n"+text+"\n```")
	}
	return kind, strings.Join(parts, "\n\n")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
