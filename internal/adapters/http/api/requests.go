package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/okian/medblog/internal/adapters/assistant"
	"github.com/okian/medblog/internal/domain/model"
)

const (
	maxBodyBytes     = 1 << 20
	maxTitleLen      = 200
	maxExcerptLen    = 500
	maxTags          = 20
	maxTagLen        = 40
	maxCategoryLen   = 80
	maxMessageLen    = 4000
	maxHistoryLen    = 50
	maxAnalyticsTopN = 100
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %v: %w", err, ErrBadRequest)
	}
	return nil
}

func intParam(q url.Values, name string) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, ErrBadRequest)
	}
	return n, nil
}

func invalid(err error) error {
	return fmt.Errorf("%v: %w", err, ErrBadRequest)
}

// feedQuery mirrors the query string of GET /articles.
type feedQuery struct {
	Category string
	Limit    int
}

func parseFeedQuery(r *http.Request, maxLimit int) (feedQuery, error) {
	q := r.URL.Query()
	limit, err := intParam(q, "limit")
	if err != nil {
		return feedQuery{}, err
	}
	fq := feedQuery{Category: strings.TrimSpace(q.Get("category")), Limit: limit}
	if err := validation.ValidateStruct(&fq,
		validation.Field(&fq.Category, validation.RuneLength(0, maxCategoryLen)),
		validation.Field(&fq.Limit, validation.Min(0), validation.Max(maxLimit)),
	); err != nil {
		return feedQuery{}, invalid(err)
	}
	return fq, nil
}

func parseTopN(r *http.Request) (int, error) {
	top, err := intParam(r.URL.Query(), "top")
	if err != nil {
		return 0, err
	}
	if err := validation.Validate(top, validation.Min(0), validation.Max(maxAnalyticsTopN)); err != nil {
		return 0, invalid(fmt.Errorf("top: %w", err))
	}
	return top, nil
}

type authorRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// articleRequest mirrors the body of POST and PUT /articles.
type articleRequest struct {
	Title         string         `json:"title"`
	Slug          string         `json:"slug"`
	Content       string         `json:"content"`
	Excerpt       string         `json:"excerpt"`
	Category      string         `json:"category"`
	Tags          []string       `json:"tags"`
	Featured      *bool          `json:"featured"`
	Status        string         `json:"status"`
	FeaturedImage string         `json:"featuredImage"`
	CreatedAt     string         `json:"createdAt"`
	Author        *authorRequest `json:"author"`
}

func (a articleRequest) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Title, validation.Required, validation.RuneLength(1, maxTitleLen)),
		validation.Field(&a.Slug, validation.Match(slugPattern)),
		validation.Field(&a.Excerpt, validation.RuneLength(0, maxExcerptLen)),
		validation.Field(&a.Category, validation.RuneLength(0, maxCategoryLen)),
		validation.Field(&a.Tags,
			validation.Length(0, maxTags),
			validation.Each(validation.Required, validation.RuneLength(1, maxTagLen)),
		),
		validation.Field(&a.Status, validation.In(model.StatusDraft, model.StatusPublished)),
		validation.Field(&a.FeaturedImage, is.URL),
		validation.Field(&a.CreatedAt, validation.By(validTimestamp)),
	)
}

func validTimestamp(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if model.ParseTimestamp(s).IsZero() {
		return validation.NewError("validation_timestamp", "must be an RFC3339 timestamp")
	}
	return nil
}

func (a articleRequest) toModel() model.Article {
	out := model.Article{
		Title:         strings.TrimSpace(a.Title),
		Slug:          a.Slug,
		Content:       a.Content,
		Excerpt:       strings.TrimSpace(a.Excerpt),
		Category:      strings.TrimSpace(a.Category),
		Tags:          a.Tags,
		Status:        a.Status,
		FeaturedImage: a.FeaturedImage,
		CreatedAt:     model.ParseTimestamp(a.CreatedAt),
	}
	if a.Featured != nil {
		out.Featured = *a.Featured
	}
	if a.Author != nil && a.Author.ID != "" {
		out.Author = &model.Author{ID: a.Author.ID, Name: a.Author.Name}
	}
	return out
}

// chatRequest mirrors the body of POST /assistant/chat.
type chatRequest struct {
	Message string              `json:"message"`
	History []assistant.Message `json:"history"`
}

func (c chatRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Message, validation.Required, validation.RuneLength(1, maxMessageLen)),
		validation.Field(&c.History, validation.Length(0, maxHistoryLen)),
	)
}
