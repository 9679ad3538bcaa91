package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

func (s *Store) GetPostID(ctx context.Context, articleID int64, platform string) (*string, error) {
	const q = `
SELECT post_id
FROM curator.article_posts
WHERE article_id = $1
  AND platform = $2
LIMIT 1
`
	var postID string
	err := s.pool.QueryRow(ctx, q, articleID, platform).Scan(&postID)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query article post article_id=%d platform=%s: %w", articleID, platform, err)
	}
	return &postID, nil
}

// RecordPost stores the platform-assigned id. A second successful post
// for the same pair would be a bug upstream, so the conflict is left to
// fail loudly instead of silently overwriting.
func (s *Store) RecordPost(ctx context.Context, articleID int64, platform, postID string, postedAt time.Time) error {
	const q = `
INSERT INTO curator.article_posts (article_id, platform, post_id, posted_at)
VALUES ($1, $2, $3, $4)
`
	if _, err := s.pool.Exec(ctx, q, articleID, platform, strings.TrimSpace(postID), postedAt.UTC()); err != nil {
		return fmt.Errorf("record article post article_id=%d platform=%s: %w", articleID, platform, err)
	}
	return nil
}

func (s *Store) ClearPost(ctx context.Context, articleID int64, platform string) error {
	const q = `
DELETE FROM curator.article_posts
WHERE article_id = $1
  AND platform = $2
`
	if _, err := s.pool.Exec(ctx, q, articleID, platform); err != nil {
		return fmt.Errorf("clear article post article_id=%d platform=%s: %w", articleID, platform, err)
	}
	return nil
}

// TagUsage is a confirmed tag with its association count, used by
// distribution to pick hashtags.
type TagUsage struct {
	Name  string
	Usage int
}

func (s *Store) TopConfirmedTags(ctx context.Context, articleID int64, limit int) ([]TagUsage, error) {
	const q = `
SELECT
	t.name,
	COUNT(all_links.article_id)::int AS usage
FROM curator.article_tags at
JOIN curator.tags t
	ON t.tag_id = at.tag_id
	AND t.confirmed
LEFT JOIN curator.article_tags all_links
	ON all_links.tag_id = t.tag_id
WHERE at.article_id = $1
GROUP BY t.tag_id, t.name
ORDER BY usage DESC, t.name
LIMIT $2
`
	rows, err := s.pool.Query(ctx, q, articleID, limit)
	if err != nil {
		return nil, fmt.Errorf("query confirmed tags article_id=%d: %w", articleID, err)
	}
	defer rows.Close()

	items := make([]TagUsage, 0, limit)
	for rows.Next() {
		var row TagUsage
		if err := rows.Scan(&row.Name, &row.Usage); err != nil {
			return nil, fmt.Errorf("scan tag usage row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag usage rows: %w", err)
	}
	return items, nil
}

func (s *Store) HasEmbedding(ctx context.Context, articleID int64, modelName string) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1
	FROM curator.article_embeddings
	WHERE article_id = $1
	  AND model_name = $2
)
`
	var exists bool
	if err := s.pool.QueryRow(ctx, q, articleID, modelName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check embedding existence article_id=%d: %w", articleID, err)
	}
	return exists, nil
}

func (s *Store) InsertEmbedding(ctx context.Context, articleID int64, modelName, vectorLiteral string, embeddedAt time.Time) (bool, error) {
	const q = `
INSERT INTO curator.article_embeddings (article_id, model_name, embedding, embedded_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (article_id, model_name) DO NOTHING
`
	tag, err := s.pool.Exec(ctx, q, articleID, modelName, vectorLiteral, embeddedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert article embedding article_id=%d: %w", articleID, err)
	}
	return tag.RowsAffected() == 1, nil
}
