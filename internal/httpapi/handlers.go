package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"kelp.press/curator/internal/db"
)

type articleListItem struct {
	ArticleUUID string     `json:"article_uuid"`
	OriginURL   string     `json:"origin_url"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	TitleKo     *string    `json:"title_ko,omitempty"`
	IsRelated   *bool      `json:"is_related,omitempty"`
	Language    string     `json:"language"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type articleDetail struct {
	articleListItem
	Body              string          `json:"body,omitempty"`
	SummaryKeys       json.RawMessage `json:"summary_keys,omitempty"`
	SummaryIntro      *string         `json:"summary_intro,omitempty"`
	SummaryBody       *string         `json:"summary_body,omitempty"`
	SummaryConclusion *string         `json:"summary_conclusion,omitempty"`
}

type sourceItem struct {
	SourceUUID    string     `json:"source_uuid"`
	Name          string     `json:"name"`
	Kind          string     `json:"kind"`
	Locator       string     `json:"locator"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type createSourceRequest struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Locator string `json:"locator"`
}

func toArticleListItem(a db.Article) articleListItem {
	return articleListItem{
		ArticleUUID: a.ArticleUUID,
		OriginURL:   a.OriginURL,
		URL:         a.URL,
		Title:       a.Title,
		TitleKo:     a.TitleKo,
		IsRelated:   a.IsRelated,
		Language:    a.Language,
		PublishedAt: a.PublishedAt,
		DeletedAt:   a.DeletedAt,
		CreatedAt:   a.CreatedAt,
	}
}

func (s *Server) handleArticles(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}
	offset, err := parsePositiveInt(c.QueryParam("offset"), 0, 0, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"offset": err.Error()})
	}

	filter := db.ArticleListFilter{
		SourceKind: strings.TrimSpace(strings.ToLower(c.QueryParam("kind"))),
		Limit:      limit,
		Offset:     offset,
	}

	switch strings.TrimSpace(strings.ToLower(c.QueryParam("related"))) {
	case "":
	case "true":
		related := true
		filter.Related = &related
	case "false":
		related := false
		filter.Related = &related
	default:
		return failValidation(c, map[string]string{"related": "must be true or false"})
	}

	if raw := strings.TrimSpace(strings.ToLower(c.QueryParam("include_discarded"))); raw == "true" {
		filter.IncludeDiscarded = true
	}

	articles, err := s.store.ListArticles(c.Request().Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("query articles failed")
		return internalError(c, "Failed to load articles")
	}

	items := make([]articleListItem, 0, len(articles))
	for _, article := range articles {
		items = append(items, toArticleListItem(article))
	}

	return success(c, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

// handleArticleDetail returns the article even when it has been
// discarded; operators need to inspect why a row was removed.
func (s *Server) handleArticleDetail(c echo.Context) error {
	articleUUID := strings.TrimSpace(c.Param("article_uuid"))
	if articleUUID == "" {
		return failValidation(c, map[string]string{"article_uuid": "is required"})
	}

	article, err := s.store.GetArticleByUUID(c.Request().Context(), articleUUID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Article not found")
		}
		s.logger.Error().Err(err).Str("article_uuid", articleUUID).Msg("query article failed")
		return internalError(c, "Failed to load article")
	}

	return success(c, articleDetail{
		articleListItem:   toArticleListItem(article),
		Body:              article.Body,
		SummaryKeys:       article.SummaryKeys,
		SummaryIntro:      article.SummaryIntro,
		SummaryBody:       article.SummaryBody,
		SummaryConclusion: article.SummaryConclusion,
	})
}

func (s *Server) handleSources(c echo.Context) error {
	sources, err := s.store.ListSources(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query sources failed")
		return internalError(c, "Failed to load sources")
	}

	items := make([]sourceItem, 0, len(sources))
	for _, src := range sources {
		items = append(items, sourceItem{
			SourceUUID:    src.SourceUUID,
			Name:          src.Name,
			Kind:          src.Kind,
			Locator:       src.Locator,
			LastCheckedAt: src.LastCheckedAt,
			DeletedAt:     src.DeletedAt,
			CreatedAt:     src.CreatedAt,
		})
	}
	return success(c, map[string]any{"items": items})
}

func (s *Server) handleCreateSource(c echo.Context) error {
	var req createSourceRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	details := map[string]string{}
	if strings.TrimSpace(req.Name) == "" {
		details["name"] = "is required"
	}
	if !validSourceKind(req.Kind) {
		details["kind"] = "must be one of feed, mailbox, video_channel, repository, aggregator"
	}
	if strings.TrimSpace(req.Locator) == "" {
		details["locator"] = "is required"
	}
	if len(details) > 0 {
		return failValidation(c, details)
	}

	created, err := s.store.UpsertSource(c.Request().Context(), db.UpsertSourceParams{
		Name:    strings.TrimSpace(req.Name),
		Kind:    strings.TrimSpace(strings.ToLower(req.Kind)),
		Locator: strings.TrimSpace(req.Locator),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("source", req.Name).Msg("upsert source failed")
		return internalError(c, "Failed to save source")
	}

	return success(c, map[string]any{
		"name":    strings.TrimSpace(req.Name),
		"created": created,
	})
}

func validSourceKind(kind string) bool {
	switch strings.TrimSpace(strings.ToLower(kind)) {
	case db.SourceKindFeed, db.SourceKindMailbox, db.SourceKindVideoChannel, db.SourceKindRepository, db.SourceKindAggregator:
		return true
	default:
		return false
	}
}
