package seed

import (
	"sync/atomic"
	"time"

	"github.com/okian/medblog/internal/domain/model"
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Token       string        // Admin bearer token
	NumArticles int           // Number of articles to create
	NumViewers  int           // Distinct viewers per article
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	DrainWait   time.Duration // How long to wait for queued views to apply
	Seed        int64         // Seed for the article generator
	Verbose     bool          // Log every request
}

// Stats holds run statistics. Counters are updated concurrently.
type Stats struct {
	ArticlesCreated atomic.Int64
	ArticlesFailed  atomic.Int64
	ViewsSent       atomic.Int64
	ViewsCounted    atomic.Int64
	ViewsFailed     atomic.Int64
	FeedEntries     int
	StartTime       time.Time
	Duration        time.Duration
}

type feedResponse struct {
	Category string                `json:"category"`
	Count    int                   `json:"count"`
	Articles []model.RankedArticle `json:"articles"`
}

type articleResponse struct {
	model.Article
	ReadingMinutes int  `json:"readingMinutes"`
	ViewCounted    bool `json:"viewCounted"`
}
