package db

import (
	"encoding/json"
	"time"
)

// Source kinds. The scheduler only ever dispatches through
// source.ForKind; these constants are the closed set it accepts.
const (
	SourceKindFeed         = "feed"
	SourceKindMailbox      = "mailbox"
	SourceKindVideoChannel = "video_channel"
	SourceKindRepository   = "repository"
	SourceKindAggregator   = "aggregator"
)

// Source maps curator.sources.
type Source struct {
	SourceID      int64      `gorm:"column:source_id;primaryKey;autoIncrement"`
	SourceUUID    string     `gorm:"column:source_uuid;type:uuid;not null;unique"`
	Name          string     `gorm:"column:name;type:text;not null;unique"`
	Kind          string     `gorm:"column:kind;type:text;not null"`
	Locator       string     `gorm:"column:locator;type:text;not null"`
	LastCheckedAt *time.Time `gorm:"column:last_checked_at;type:timestamptz"`
	DeletedAt     *time.Time `gorm:"column:deleted_at;type:timestamptz"`
	CreatedAt     time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "curator.sources" }

// Article maps curator.articles. origin_url carries the global dedup
// constraint and is immutable after insert; url may later be rewritten
// to the redirect-resolved address.
type Article struct {
	ArticleID         int64           `gorm:"column:article_id;primaryKey;autoIncrement"`
	ArticleUUID       string          `gorm:"column:article_uuid;type:uuid;not null;unique"`
	SourceID          int64           `gorm:"column:source_id;type:bigint;not null"`
	OriginURL         string          `gorm:"column:origin_url;type:text;not null;unique"`
	URL               string          `gorm:"column:url;type:text;not null"`
	Title             string          `gorm:"column:title;type:text;not null;default:''"`
	TitleKo           *string         `gorm:"column:title_ko;type:text"`
	Body              string          `gorm:"column:body;type:text;not null;default:''"`
	SummaryKeys       json.RawMessage `gorm:"column:summary_keys;type:jsonb"`
	SummaryIntro      *string         `gorm:"column:summary_intro;type:text"`
	SummaryBody       *string         `gorm:"column:summary_body;type:text"`
	SummaryConclusion *string         `gorm:"column:summary_conclusion;type:text"`
	IsRelated         *bool           `gorm:"column:is_related;type:boolean"`
	Language          string          `gorm:"column:language;type:text;not null;default:und"`
	PublishedAt       *time.Time      `gorm:"column:published_at;type:timestamptz"`
	DeletedAt         *time.Time      `gorm:"column:deleted_at;type:timestamptz"`
	CreatedAt         time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Article) TableName() string { return "curator.articles" }

// SummaryKeyList decodes the summary_keys JSON array. A missing or
// malformed column reads as no keys.
func (a Article) SummaryKeyList() []string {
	if len(a.SummaryKeys) == 0 {
		return nil
	}
	var keys []string
	if err := json.Unmarshal(a.SummaryKeys, &keys); err != nil {
		return nil
	}
	return keys
}

// ArticleEmbedding maps curator.article_embeddings.
type ArticleEmbedding struct {
	ArticleEmbeddingID int64     `gorm:"column:article_embedding_id;primaryKey;autoIncrement"`
	ArticleID          int64     `gorm:"column:article_id;type:bigint;not null;uniqueIndex:idx_article_embedding_model"`
	ModelName          string    `gorm:"column:model_name;type:text;not null;uniqueIndex:idx_article_embedding_model"`
	Embedding          string    `gorm:"column:embedding;type:text;not null"`
	EmbeddedAt         time.Time `gorm:"column:embedded_at;type:timestamptz;not null;default:now()"`
}

func (ArticleEmbedding) TableName() string { return "curator.article_embeddings" }

// Tag maps curator.tags. Names are stored lower-cased; confirmed tags
// are the only ones distribution will render.
type Tag struct {
	TagID     int64     `gorm:"column:tag_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:text;not null;unique"`
	Confirmed bool      `gorm:"column:confirmed;type:boolean;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Tag) TableName() string { return "curator.tags" }

// ArticleTag maps curator.article_tags.
type ArticleTag struct {
	ArticleID int64     `gorm:"column:article_id;type:bigint;primaryKey"`
	TagID     int64     `gorm:"column:tag_id;type:bigint;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (ArticleTag) TableName() string { return "curator.article_tags" }

// ArticlePost maps curator.article_posts. A row exists only while the
// article is live on that platform; delete removes the row.
type ArticlePost struct {
	ArticleID int64     `gorm:"column:article_id;type:bigint;primaryKey"`
	Platform  string    `gorm:"column:platform;type:text;primaryKey"`
	PostID    string    `gorm:"column:post_id;type:text;not null"`
	PostedAt  time.Time `gorm:"column:posted_at;type:timestamptz;not null;default:now()"`
}

func (ArticlePost) TableName() string { return "curator.article_posts" }

func autoMigrateModels() []any {
	return []any{
		&Source{},
		&Article{},
		&ArticleEmbedding{},
		&Tag{},
		&ArticleTag{},
		&ArticlePost{},
	}
}
