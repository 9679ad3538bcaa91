package enrich

import (
	"strings"
	"testing"
)

func TestNormalizeMarkdownUnescapesSequences(t *testing.T) {
	t.Parallel()

	got := NormalizeMarkdown(`첫 줄\n둘째 줄\t들여쓰기\"인용\"`)
	want := "첫 줄\n둘째 줄\t들여쓰기\"인용\""
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeMarkdownPreservesLiteralBackslashes(t *testing.T) {
	t.Parallel()

	// A double backslash followed by n is a literal backslash and the
	// letter n, not a newline.
	got := NormalizeMarkdown(`path C:\\new\\table`)
	if got != `path C:\new\table` {
		t.Fatalf("expected literal backslashes preserved, got %q", got)
	}
}

func TestNormalizeMarkdownInsertsBlankLineBeforeBlocks(t *testing.T) {
	t.Parallel()

	got := NormalizeMarkdown("intro text\n## Section\ncontent\n- item one\n- item two")
	if !strings.Contains(got, "intro text\n\n## Section") {
		t.Fatalf("expected blank line before header, got %q", got)
	}
	if !strings.Contains(got, "content\n\n- item one") {
		t.Fatalf("expected blank line before list, got %q", got)
	}
	if strings.Contains(got, "item one\n\n- item two") {
		t.Fatalf("did not expect blank line between adjacent list items, got %q", got)
	}
}

func TestNormalizeMarkdownCollapsesBlankRuns(t *testing.T) {
	t.Parallel()

	got := NormalizeMarkdown("a\n\n\n\n\nb")
	if got != "a\n\nb" {
		t.Fatalf("expected collapsed blank lines, got %q", got)
	}
}
