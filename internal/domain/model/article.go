// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Article statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Roles that may act on articles through the CMS.
const (
	RoleAdmin   = "admin"
	RoleBlogger = "blogger"
)

// CategoryAll is the filter value that selects every article.
const CategoryAll = "All"

// Author is the byline attached to an article.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// BlogCount is the number of articles by this author, nil when unknown.
	BlogCount *int `json:"blogCount,omitempty"`
}

// Article is a single blog post as stored and served.
type Article struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Excerpt       string    `json:"excerpt,omitempty"`
	Category      string    `json:"category,omitempty"`
	Tags          []string  `json:"tags"`
	Featured      bool      `json:"featured"`
	Views         int64     `json:"views"`
	Status        string    `json:"status"`
	FeaturedImage string    `json:"featuredImage,omitempty"`
	Author        *Author   `json:"author,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no slices or pointers with a.
func (a Article) Clone() Article {
	out := a
	if a.Tags != nil {
		out.Tags = append([]string(nil), a.Tags...)
	}
	if a.Author != nil {
		au := *a.Author
		if a.Author.BlogCount != nil {
			n := *a.Author.BlogCount
			au.BlogCount = &n
		}
		out.Author = &au
	}
	return out
}

// AuthorID returns the author's id or "" when the article has no author.
func (a Article) AuthorID() string {
	if a.Author == nil {
		return ""
	}
	return a.Author.ID
}

// RankedArticle is an article annotated with its computed score and 1-based rank.
type RankedArticle struct {
	Rank    int     `json:"rank"`
	Score   int     `json:"score"`
	Article Article `json:"article"`
}

// Category is a distinct category label with its article count.
type Category struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AuthorStats summarizes one author's output.
type AuthorStats struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
	Articles int    `json:"articles"`
	Views    int64  `json:"views"`
}

// Analytics is the super-admin overview of the content collection.
type Analytics struct {
	TotalArticles int           `json:"totalArticles"`
	Published     int           `json:"published"`
	Drafts        int           `json:"drafts"`
	Featured      int           `json:"featured"`
	TotalViews    int64         `json:"totalViews"`
	Categories    []Category    `json:"categories"`
	Authors       []AuthorStats `json:"authors"`
	TopArticles   []Article     `json:"topArticles"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

// ViewEvent records that a viewer opened an article.
type ViewEvent struct {
	ArticleID string
	ViewerID  string
	TS        time.Time
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{ //nolint:gochecknoglobals // fixed parse table
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a stored timestamp. Unparseable input yields the zero
// time, which the ranker treats as infinitely old.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
