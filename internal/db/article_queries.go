package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type NewArticleParams struct {
	SourceID    int64
	OriginURL   string
	Title       string
	PublishedAt *time.Time
}

// InsertRawArticle persists a candidate item in its raw state. The
// unique index on origin_url is the cross-worker dedup authority:
// losing the race is reported as inserted=false, not as an error.
func (s *Store) InsertRawArticle(ctx context.Context, params NewArticleParams) (int64, bool, error) {
	originURL := strings.TrimSpace(params.OriginURL)
	if originURL == "" {
		return 0, false, fmt.Errorf("origin url is required")
	}

	const q = `
INSERT INTO curator.articles (article_uuid, source_id, origin_url, url, title, published_at, created_at, updated_at)
VALUES ($1, $2, $3, $3, $4, $5, now(), now())
ON CONFLICT (origin_url) DO NOTHING
RETURNING article_id
`
	var articleID int64
	err := s.pool.QueryRow(ctx, q, uuid.NewString(), params.SourceID, originURL, strings.TrimSpace(params.Title), params.PublishedAt).Scan(&articleID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return 0, false, nil
		}
		if IsUniqueViolation(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("insert raw article origin_url=%s: %w", originURL, err)
	}
	return articleID, true, nil
}

func (s *Store) OriginURLExists(ctx context.Context, originURL string) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1
	FROM curator.articles
	WHERE origin_url = $1
)
`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, strings.TrimSpace(originURL)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check origin url existence: %w", err)
	}
	return exists, nil
}

func (s *Store) GetArticleByUUID(ctx context.Context, articleUUID string) (Article, error) {
	return s.getArticleWhere(ctx, "a.article_uuid = $1::uuid", strings.TrimSpace(articleUUID))
}

func (s *Store) getArticleWhere(ctx context.Context, predicate string, arg any) (Article, error) {
	q := fmt.Sprintf(`
SELECT
	a.article_id,
	a.article_uuid::text,
	a.source_id,
	a.origin_url,
	a.url,
	a.title,
	a.title_ko,
	a.body,
	a.summary_keys,
	a.summary_intro,
	a.summary_body,
	a.summary_conclusion,
	a.is_related,
	a.language,
	a.published_at,
	a.deleted_at,
	a.created_at,
	a.updated_at
FROM curator.articles a
WHERE %s
LIMIT 1
`, predicate)

	var row Article
	err := s.pool.QueryRow(ctx, q, arg).Scan(
		&row.ArticleID,
		&row.ArticleUUID,
		&row.SourceID,
		&row.OriginURL,
		&row.URL,
		&row.Title,
		&row.TitleKo,
		&row.Body,
		&row.SummaryKeys,
		&row.SummaryIntro,
		&row.SummaryBody,
		&row.SummaryConclusion,
		&row.IsRelated,
		&row.Language,
		&row.PublishedAt,
		&row.DeletedAt,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		return Article{}, fmt.Errorf("query article: %w", err)
	}
	return row, nil
}

// ListPendingEnrichment returns kept articles that have not been
// enriched yet, oldest first.
func (s *Store) ListPendingEnrichment(ctx context.Context, limit int) ([]Article, error) {
	const q = `
SELECT
	a.article_id,
	a.article_uuid::text,
	a.source_id,
	a.origin_url,
	a.url,
	a.title,
	a.title_ko,
	a.body,
	a.summary_keys,
	a.summary_intro,
	a.summary_body,
	a.summary_conclusion,
	a.is_related,
	a.language,
	a.published_at,
	a.deleted_at,
	a.created_at,
	a.updated_at
FROM curator.articles a
WHERE a.deleted_at IS NULL
  AND a.title_ko IS NULL
ORDER BY a.article_id
LIMIT $1
`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending enrichment: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func scanArticles(rows *Rows) ([]Article, error) {
	items := make([]Article, 0, 32)
	for rows.Next() {
		var row Article
		if err := rows.Scan(
			&row.ArticleID,
			&row.ArticleUUID,
			&row.SourceID,
			&row.OriginURL,
			&row.URL,
			&row.Title,
			&row.TitleKo,
			&row.Body,
			&row.SummaryKeys,
			&row.SummaryIntro,
			&row.SummaryBody,
			&row.SummaryConclusion,
			&row.IsRelated,
			&row.Language,
			&row.PublishedAt,
			&row.DeletedAt,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return items, nil
}

// UpdateArticleBody records extraction output: the resolved URL, the
// extracted body text, and the detected language.
func (s *Store) UpdateArticleBody(ctx context.Context, articleID int64, resolvedURL, body, language string) error {
	const q = `
UPDATE curator.articles
SET
	url = COALESCE(NULLIF($2, ''), url),
	body = $3,
	language = COALESCE(NULLIF($4, ''), language),
	updated_at = now()
WHERE article_id = $1
`
	if _, err := s.pool.Exec(ctx, q, articleID, strings.TrimSpace(resolvedURL), body, strings.TrimSpace(language)); err != nil {
		return fmt.Errorf("update article body article_id=%d: %w", articleID, err)
	}
	return nil
}

func (s *Store) SoftDeleteArticle(ctx context.Context, articleID int64, deletedAt time.Time) error {
	const q = `
UPDATE curator.articles
SET deleted_at = $2, updated_at = $2
WHERE article_id = $1
  AND deleted_at IS NULL
`
	if _, err := s.pool.Exec(ctx, q, articleID, deletedAt.UTC()); err != nil {
		return fmt.Errorf("soft-delete article article_id=%d: %w", articleID, err)
	}
	return nil
}

type EnrichmentParams struct {
	ArticleID         int64
	TitleKo           string
	SummaryKeys       []string
	SummaryIntro      string
	SummaryBody       string
	SummaryConclusion string
	Tags              []string
	IsRelated         bool
}

// ApplyEnrichment persists the full enrichment result in one
// transaction: structured fields on the article row plus the tag
// associations.
func (s *Store) ApplyEnrichment(ctx context.Context, params EnrichmentParams) error {
	keysJSON, err := json.Marshal(params.SummaryKeys)
	if err != nil {
		return fmt.Errorf("marshal summary keys: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin enrichment tx: %w", err)
	}

	const updateQ = `
UPDATE curator.articles
SET
	title_ko = $2,
	summary_keys = $3::jsonb,
	summary_intro = $4,
	summary_body = $5,
	summary_conclusion = $6,
	is_related = $7,
	updated_at = now()
WHERE article_id = $1
`
	if _, err := tx.Exec(
		ctx,
		updateQ,
		params.ArticleID,
		params.TitleKo,
		string(keysJSON),
		params.SummaryIntro,
		params.SummaryBody,
		params.SummaryConclusion,
		params.IsRelated,
	); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("update article enrichment article_id=%d: %w", params.ArticleID, err)
	}

	for _, tag := range params.Tags {
		if err := associateTagTx(ctx, tx, params.ArticleID, tag); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit enrichment tx: %w", err)
	}
	return nil
}

func associateTagTx(ctx context.Context, tx Tx, articleID int64, name string) error {
	const upsertQ = `
INSERT INTO curator.tags (name, created_at)
VALUES ($1, now())
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING tag_id
`
	var tagID int64
	if err := tx.QueryRow(ctx, upsertQ, name).Scan(&tagID); err != nil {
		return fmt.Errorf("upsert tag %q: %w", name, err)
	}

	const linkQ = `
INSERT INTO curator.article_tags (article_id, tag_id, created_at)
VALUES ($1, $2, now())
ON CONFLICT (article_id, tag_id) DO NOTHING
`
	if _, err := tx.Exec(ctx, linkQ, articleID, tagID); err != nil {
		return fmt.Errorf("link tag %q to article_id=%d: %w", name, articleID, err)
	}
	return nil
}

// ListDistributable returns enriched, kept, related articles that have
// no recorded post on the given platform yet.
func (s *Store) ListDistributable(ctx context.Context, platform string, limit int) ([]Article, error) {
	const q = `
SELECT
	a.article_id,
	a.article_uuid::text,
	a.source_id,
	a.origin_url,
	a.url,
	a.title,
	a.title_ko,
	a.body,
	a.summary_keys,
	a.summary_intro,
	a.summary_body,
	a.summary_conclusion,
	a.is_related,
	a.language,
	a.published_at,
	a.deleted_at,
	a.created_at,
	a.updated_at
FROM curator.articles a
WHERE a.deleted_at IS NULL
  AND a.is_related IS TRUE
  AND a.title_ko IS NOT NULL
  AND NOT EXISTS (
	SELECT 1
	FROM curator.article_posts p
	WHERE p.article_id = a.article_id
	  AND p.platform = $1
)
ORDER BY a.article_id
LIMIT $2
`
	rows, err := s.pool.Query(ctx, q, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("query distributable articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// ArticleListFilter drives the operational listing endpoint. Discarded
// rows are excluded unless IncludeDiscarded is set.
type ArticleListFilter struct {
	SourceKind       string
	Related          *bool
	IncludeDiscarded bool
	Limit            int
	Offset           int
}

func (s *Store) ListArticles(ctx context.Context, filter ArticleListFilter) ([]Article, error) {
	query, args, err := listArticlesQuery(filter)
	if err != nil {
		return nil, fmt.Errorf("build article list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query article list: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func listArticlesQuery(filter ArticleListFilter) (string, []any, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	builder := sq.Select(
		"a.article_id",
		"a.article_uuid::text",
		"a.source_id",
		"a.origin_url",
		"a.url",
		"a.title",
		"a.title_ko",
		"a.body",
		"a.summary_keys",
		"a.summary_intro",
		"a.summary_body",
		"a.summary_conclusion",
		"a.is_related",
		"a.language",
		"a.published_at",
		"a.deleted_at",
		"a.created_at",
		"a.updated_at",
	).
		From("curator.articles a").
		OrderBy("a.article_id DESC").
		Limit(uint64(limit)).
		Offset(uint64(max(filter.Offset, 0))).
		PlaceholderFormat(sq.Dollar)

	if !filter.IncludeDiscarded {
		builder = builder.Where("a.deleted_at IS NULL")
	}
	if filter.Related != nil {
		builder = builder.Where(sq.Eq{"a.is_related": *filter.Related})
	}
	if kind := strings.TrimSpace(filter.SourceKind); kind != "" {
		builder = builder.
			Join("curator.sources src ON src.source_id = a.source_id").
			Where(sq.Eq{"src.kind": kind})
	}

	return builder.ToSql()
}
