package distribute

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kelp.press/curator/internal/db"
	"kelp.press/curator/internal/globaltime"
)

var (
	// ErrNoSocialID means a delete was requested for an article that
	// has no recorded post on the platform.
	ErrNoSocialID = errors.New("no recorded post for platform")
	// ErrUnknownPlatform means the platform name is not configured.
	ErrUnknownPlatform = errors.New("unknown platform")
)

// EngineStore is the storage surface the distribution engine needs.
type EngineStore interface {
	ListDistributable(ctx context.Context, platform string, limit int) ([]db.Article, error)
	GetPostID(ctx context.Context, articleID int64, platform string) (*string, error)
	RecordPost(ctx context.Context, articleID int64, platform, postID string, postedAt time.Time) error
	ClearPost(ctx context.Context, articleID int64, platform string) error
	TopConfirmedTags(ctx context.Context, articleID int64, limit int) ([]db.TagUsage, error)
}

// Stats counts one distribution pass over a single platform.
type Stats struct {
	Considered int
	Posted     int
	Skipped    int
	Failed     int
}

// Engine publishes enriched articles to social platforms. A post id is
// recorded only after the platform accepted the post, and cleared only
// after the platform confirmed the delete, so the stored state always
// reflects what is actually live.
type Engine struct {
	store       EngineStore
	posters     map[string]Poster
	siteBaseURL string
	logger      zerolog.Logger
}

func NewEngine(store EngineStore, posters []Poster, siteBaseURL string, logger zerolog.Logger) *Engine {
	byName := make(map[string]Poster, len(posters))
	for _, poster := range posters {
		if poster != nil {
			byName[poster.Name()] = poster
		}
	}
	return &Engine{
		store:       store,
		posters:     byName,
		siteBaseURL: strings.TrimRight(strings.TrimSpace(siteBaseURL), "/"),
		logger:      logger,
	}
}

// DistributePlatform posts up to limit eligible articles to one platform.
func (e *Engine) DistributePlatform(ctx context.Context, platformName string, limit int) (Stats, error) {
	if e == nil || e.store == nil {
		return Stats{}, fmt.Errorf("distribution engine is not initialized")
	}

	platform, ok := PlatformByName(platformName)
	if !ok {
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownPlatform, platformName)
	}
	poster, ok := e.posters[platform.Name]
	if !ok {
		return Stats{}, fmt.Errorf("%w: no poster configured for %q", ErrUnknownPlatform, platformName)
	}
	if limit <= 0 {
		limit = 10
	}

	articles, err := e.store.ListDistributable(ctx, platform.Name, limit)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, article := range articles {
		stats.Considered++

		// The eligibility query already excludes posted articles, but a
		// concurrent pass may have posted since; re-check before sending.
		existing, err := e.store.GetPostID(ctx, article.ArticleID, platform.Name)
		if err != nil {
			stats.Failed++
			e.logger.Error().Err(err).Int64("article_id", article.ArticleID).Msg("post lookup failed")
			continue
		}
		if existing != nil {
			stats.Skipped++
			continue
		}

		if err := e.postOne(ctx, platform, poster, article); err != nil {
			stats.Failed++
			e.logger.Error().Err(err).
				Int64("article_id", article.ArticleID).
				Str("platform", platform.Name).
				Msg("post failed")
			continue
		}
		stats.Posted++
	}

	e.logger.Info().
		Str("platform", platform.Name).
		Int("considered", stats.Considered).
		Int("posted", stats.Posted).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("distribution pass complete")
	return stats, nil
}

func (e *Engine) postOne(ctx context.Context, platform Platform, poster Poster, article db.Article) error {
	tags, err := e.store.TopConfirmedTags(ctx, article.ArticleID, platform.MaxTags)
	if err != nil {
		return err
	}
	tagNames := make([]string, 0, len(tags))
	for _, tag := range tags {
		tagNames = append(tagNames, tag.Name)
	}

	title := article.Title
	if article.TitleKo != nil && strings.TrimSpace(*article.TitleKo) != "" {
		title = *article.TitleKo
	}

	// The first summary key rides along with the title; the pair is
	// truncated as one block against the platform budget.
	content := title
	if keys := article.SummaryKeyList(); len(keys) > 0 {
		if bullet := strings.TrimSpace(keys[0]); bullet != "" {
			content = content + "\n" + bullet
		}
	}

	text := platform.Compose(content, e.articleLink(article), tagNames)

	postID, err := poster.CreatePost(ctx, text)
	if err != nil {
		return err
	}
	if err := e.store.RecordPost(ctx, article.ArticleID, platform.Name, postID, globaltime.UTC()); err != nil {
		// The post is live but unrecorded; surfacing the error loudly
		// beats silently double-posting later.
		return fmt.Errorf("post %s is live but not recorded: %w", postID, err)
	}
	return nil
}

// Retract removes the article's post from the platform and clears the
// stored post id.
func (e *Engine) Retract(ctx context.Context, articleID int64, platformName string) error {
	if e == nil || e.store == nil {
		return fmt.Errorf("distribution engine is not initialized")
	}

	platform, ok := PlatformByName(platformName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlatform, platformName)
	}
	poster, ok := e.posters[platform.Name]
	if !ok {
		return fmt.Errorf("%w: no poster configured for %q", ErrUnknownPlatform, platformName)
	}

	postID, err := e.store.GetPostID(ctx, articleID, platform.Name)
	if err != nil {
		return err
	}
	if postID == nil {
		return fmt.Errorf("article_id=%d on %s: %w", articleID, platform.Name, ErrNoSocialID)
	}

	if err := poster.DeletePost(ctx, *postID); err != nil {
		return err
	}
	return e.store.ClearPost(ctx, articleID, platform.Name)
}

// articleLink is the public site address for an article.
func (e *Engine) articleLink(article db.Article) string {
	base := e.siteBaseURL
	if base == "" {
		return article.URL
	}
	return base + "/articles/" + article.ArticleUUID
}
