package db

import (
	"strings"
	"testing"
)

func TestListArticlesQueryExcludesDiscardedByDefault(t *testing.T) {
	t.Parallel()

	query, _, err := listArticlesQuery(ArticleListFilter{})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if !strings.Contains(query, "deleted_at IS NULL") {
		t.Fatalf("expected discarded rows filtered out, got %q", query)
	}
}

func TestListArticlesQueryIncludesDiscardedWhenAsked(t *testing.T) {
	t.Parallel()

	query, _, err := listArticlesQuery(ArticleListFilter{IncludeDiscarded: true})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if strings.Contains(query, "deleted_at IS NULL") {
		t.Fatalf("expected no discard predicate, got %q", query)
	}
}

func TestListArticlesQueryFilters(t *testing.T) {
	t.Parallel()

	related := true
	query, args, err := listArticlesQuery(ArticleListFilter{
		SourceKind: "feed",
		Related:    &related,
		Limit:      25,
		Offset:     50,
	})
	if err != nil {
		t.Fatalf("build query: %v", err)
	}
	if !strings.Contains(query, "src.kind") {
		t.Fatalf("expected kind join predicate, got %q", query)
	}
	if !strings.Contains(query, "a.is_related") {
		t.Fatalf("expected relatedness predicate, got %q", query)
	}
	if !strings.Contains(query, "LIMIT 25") || !strings.Contains(query, "OFFSET 50") {
		t.Fatalf("expected paging clauses, got %q", query)
	}
	if len(args) != 2 {
		t.Fatalf("expected two bound args, got %v", args)
	}
}

func TestListArticlesQueryClampsLimit(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{0, -4, 5000} {
		query, _, err := listArticlesQuery(ArticleListFilter{Limit: limit})
		if err != nil {
			t.Fatalf("build query: %v", err)
		}
		if !strings.Contains(query, "LIMIT 50") {
			t.Fatalf("expected limit %d clamped to default, got %q", limit, query)
		}
	}
}
