package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "modernc.org/sqlite"             // registers the "sqlite" driver

	"github.com/okian/medblog/internal/domain/model"
)

// Supported SQL dialects.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

const (
	pgUniqueViolation = "23505"
	defaultPingWait   = 5 * time.Second
)

var schemas = map[string]string{ //nolint:gochecknoglobals // static DDL
	DialectSQLite: `CREATE TABLE IF NOT EXISTS articles (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	id             TEXT NOT NULL UNIQUE,
	slug           TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL DEFAULT '',
	excerpt        TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '[]',
	featured       BOOLEAN NOT NULL DEFAULT FALSE,
	views          INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'published',
	featured_image TEXT NOT NULL DEFAULT '',
	author_id      TEXT NOT NULL DEFAULT '',
	author_name    TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
)`,
	DialectPostgres: `CREATE TABLE IF NOT EXISTS articles (
	seq            BIGSERIAL PRIMARY KEY,
	id             TEXT NOT NULL UNIQUE,
	slug           TEXT NOT NULL UNIQUE,
	title          TEXT NOT NULL,
	content        TEXT NOT NULL DEFAULT '',
	excerpt        TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	tags           TEXT NOT NULL DEFAULT '[]',
	featured       BOOLEAN NOT NULL DEFAULT FALSE,
	views          BIGINT NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'published',
	featured_image TEXT NOT NULL DEFAULT '',
	author_id      TEXT NOT NULL DEFAULT '',
	author_name    TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
)`,
}

const articleColumns = `id, slug, title, content, excerpt, category, tags, featured, views, status, featured_image, author_id, author_name, created_at, updated_at`

// SQLStore implements Store on database/sql. Timestamps are kept as RFC3339
// text so rows written by older tools stay readable; a value that does not
// parse is read back as the zero time.
type SQLStore struct {
	db      *sql.DB
	dialect string
	opts    options
}

// OpenSQL opens a database for dialect, checks connectivity and creates the
// schema when missing.
func OpenSQL(ctx context.Context, dialect, dsn string, opts ...Option) (*SQLStore, error) {
	driverName := dialect
	if dialect == DialectPostgres {
		driverName = "pgx"
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingWait)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	s, err := NewSQLStore(db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. It does not touch the schema.
func NewSQLStore(db *sql.DB, dialect string, opts ...Option) (*SQLStore, error) {
	if _, ok := schemas[dialect]; !ok {
		return nil, fmt.Errorf("%q: %w", dialect, ErrUnknownStore)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &SQLStore{db: db, dialect: dialect, opts: o}, nil
}

// Migrate creates the articles table when it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemas[s.dialect]); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Create(ctx context.Context, a model.Article) (model.Article, error) {
	a, err := s.opts.prepareCreate(a)
	if err != nil {
		return model.Article{}, err
	}
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return model.Article{}, fmt.Errorf("encode tags: %w", err)
	}
	authorID, authorName := authorColumns(a)
	q := s.rebind(`INSERT INTO articles (` + articleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, q,
		a.ID, a.Slug, a.Title, a.Content, a.Excerpt, a.Category, string(tags), a.Featured, a.Views,
		a.Status, a.FeaturedImage, authorID, authorName,
		formatTimestamp(a.CreatedAt), formatTimestamp(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Article{}, fmt.Errorf("id %s or slug %s: %w", a.ID, a.Slug, ErrConflict)
		}
		return model.Article{}, fmt.Errorf("insert article: %w", err)
	}
	return s.withAuthorCount(ctx, a)
}

func (s *SQLStore) Get(ctx context.Context, id string) (model.Article, error) {
	return s.getOne(ctx, "id", id)
}

func (s *SQLStore) GetBySlug(ctx context.Context, slug string) (model.Article, error) {
	return s.getOne(ctx, "slug", slug)
}

func (s *SQLStore) getOne(ctx context.Context, column, value string) (model.Article, error) {
	q := s.rebind(`SELECT ` + articleColumns + ` FROM articles WHERE ` + column + ` = ?`)
	a, err := scanArticle(s.db.QueryRowContext(ctx, q, value))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Article{}, fmt.Errorf("%s %s: %w", column, value, ErrNotFound)
	}
	if err != nil {
		return model.Article{}, fmt.Errorf("select article: %w", err)
	}
	return s.withAuthorCount(ctx, a)
}

func (s *SQLStore) withAuthorCount(ctx context.Context, a model.Article) (model.Article, error) {
	id := a.AuthorID()
	if id == "" {
		return a, nil
	}
	var n int
	q := s.rebind(`SELECT COUNT(*) FROM articles WHERE author_id = ?`)
	if err := s.db.QueryRowContext(ctx, q, id).Scan(&n); err != nil {
		return model.Article{}, fmt.Errorf("count author articles: %w", err)
	}
	return withBlogCount(a, n), nil
}

func (s *SQLStore) Update(ctx context.Context, in model.Article) (model.Article, error) {
	stored, err := s.Get(ctx, in.ID)
	if err != nil {
		return model.Article{}, err
	}
	out, err := s.opts.mergeUpdate(stored, in)
	if err != nil {
		return model.Article{}, err
	}
	tags, err := json.Marshal(out.Tags)
	if err != nil {
		return model.Article{}, fmt.Errorf("encode tags: %w", err)
	}
	authorID, authorName := authorColumns(out)
	q := s.rebind(`UPDATE articles SET slug = ?, title = ?, content = ?, excerpt = ?, category = ?, tags = ?, featured = ?, status = ?, featured_image = ?, author_id = ?, author_name = ?, updated_at = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q,
		out.Slug, out.Title, out.Content, out.Excerpt, out.Category, string(tags), out.Featured,
		out.Status, out.FeaturedImage, authorID, authorName, formatTimestamp(out.UpdatedAt), out.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Article{}, fmt.Errorf("slug %s: %w", out.Slug, ErrConflict)
		}
		return model.Article{}, fmt.Errorf("update article: %w", err)
	}
	if err := requireRow(res, out.ID); err != nil {
		return model.Article{}, err
	}
	return s.withAuthorCount(ctx, out)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM articles WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	return requireRow(res, id)
}

func (s *SQLStore) List(ctx context.Context) ([]model.Article, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]model.Article, 0)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	annotateBlogCounts(out)
	return out, nil
}

func (s *SQLStore) IncrementViews(ctx context.Context, id string, delta int64) error {
	if delta < 0 {
		return fmt.Errorf("negative view delta %d: %w", delta, ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE articles SET views = views + ? WHERE id = ?`), delta, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	return requireRow(res, id)
}

func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (model.Article, error) {
	var (
		a                    model.Article
		tags                 string
		authorID, authorName string
		createdAt, updatedAt string
	)
	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Content, &a.Excerpt, &a.Category, &tags, &a.Featured,
		&a.Views, &a.Status, &a.FeaturedImage, &authorID, &authorName, &createdAt, &updatedAt)
	if err != nil {
		return model.Article{}, err
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil || a.Tags == nil {
		a.Tags = []string{}
	}
	if authorID != "" || authorName != "" {
		a.Author = &model.Author{ID: authorID, Name: authorName}
	}
	a.CreatedAt = model.ParseTimestamp(createdAt)
	a.UpdatedAt = model.ParseTimestamp(updatedAt)
	return a, nil
}

func authorColumns(a model.Article) (string, string) {
	if a.Author == nil {
		return "", ""
	}
	return a.Author.ID, a.Author.Name
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("id %s: %w", id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
