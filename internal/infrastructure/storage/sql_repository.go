package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"NewsScanner/internal/domain"
	"NewsScanner/internal/ports"
)

// Dialect names the supported SQL backends.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const tableName = "articles"

var articleColumns = []string{
	"source",
	"id",
	"title",
	"body",
	"published_at",
	"importance_score",
	"recency_score",
	"final_score",
	"category",
	"is_filtered",
	"ingested_at",
}

// SQLRepository stores scored articles in one table keyed by (source, id).
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

var _ ports.ArticleStore = (*SQLRepository)(nil)

// Open connects to the configured backend and ensures the schema exists.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLRepository, error) {
	driver, err := driverName(dialect)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer at a time avoids SQLITE_BUSY under concurrent upserts
		db.SetMaxOpenConns(1)
	}

	repo, err := NewSQLRepository(db, dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLRepository wires an existing sql.DB.
func NewSQLRepository(db *sql.DB, dialect Dialect) (*SQLRepository, error) {
	if db == nil {
		return nil, errors.New("database handle is nil")
	}

	builder := sq.StatementBuilder
	switch dialect {
	case DialectSQLite:
		builder = builder.PlaceholderFormat(sq.Question)
	case DialectPostgres:
		builder = builder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	return &SQLRepository{db: db, dialect: dialect, builder: builder}, nil
}

// Migrate creates the articles table and its ranking index.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema(r.dialect) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping checks connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close releases the connection pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Upsert inserts the article or replaces the stored one with the same key.
// It is a single statement, never a read followed by a write.
func (r *SQLRepository) Upsert(ctx context.Context, article domain.ScoredArticle) error {
	query, args, err := r.builder.
		Insert(tableName).
		Columns(articleColumns...).
		Values(
			article.Source,
			article.ID,
			article.Title,
			nullString(article.Body),
			article.PublishedAt.UTC(),
			nullFloat(article.ImportanceScore),
			nullFloat(article.RecencyScore),
			nullFloat(article.FinalScore),
			nullStringPtr(article.Category),
			article.IsFiltered,
			article.IngestedAt.UTC(),
		).
		Suffix(upsertSuffix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert article: %w", err)
	}
	return nil
}

// Scan yields articles ordered by final score descending; unscored rows come last
// and ties are broken by publish time, source and id so the order is stable.
// Every iteration runs a fresh query.
func (r *SQLRepository) Scan(ctx context.Context, filter domain.ScanFilter) iter.Seq2[domain.ScoredArticle, error] {
	return func(yield func(domain.ScoredArticle, error) bool) {
		q := r.builder.
			Select(articleColumns...).
			From(tableName).
			OrderBy("final_score IS NULL", "final_score DESC", "published_at DESC", "source", "id")
		if filter.FilteredOnly {
			q = q.Where(sq.Eq{"is_filtered": true})
		}

		query, args, err := q.ToSql()
		if err != nil {
			yield(domain.ScoredArticle{}, fmt.Errorf("build scan: %w", err))
			return
		}

		rows, err := r.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(domain.ScoredArticle{}, fmt.Errorf("query articles: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			article, err := scanArticle(rows)
			if err != nil {
				yield(domain.ScoredArticle{}, err)
				return
			}
			if !yield(article, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(domain.ScoredArticle{}, fmt.Errorf("rows iteration: %w", err))
		}
	}
}

func scanArticle(rows *sql.Rows) (domain.ScoredArticle, error) {
	var (
		article    domain.ScoredArticle
		body       sql.NullString
		category   sql.NullString
		importance sql.NullFloat64
		recency    sql.NullFloat64
		final      sql.NullFloat64
	)

	err := rows.Scan(
		&article.Source,
		&article.ID,
		&article.Title,
		&body,
		&article.PublishedAt,
		&importance,
		&recency,
		&final,
		&category,
		&article.IsFiltered,
		&article.IngestedAt,
	)
	if err != nil {
		return domain.ScoredArticle{}, fmt.Errorf("scan article: %w", err)
	}

	article.Body = body.String
	article.PublishedAt = article.PublishedAt.UTC()
	article.IngestedAt = article.IngestedAt.UTC()
	article.ImportanceScore = floatPtr(importance)
	article.RecencyScore = floatPtr(recency)
	article.FinalScore = floatPtr(final)
	if category.Valid {
		c := category.String
		article.Category = &c
	}
	return article, nil
}

func upsertSuffix() string {
	updates := make([]string, 0, len(articleColumns)-2)
	for _, col := range articleColumns[2:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	return "ON CONFLICT (source, id) DO UPDATE SET " + strings.Join(updates, ", ")
}

func schema(dialect Dialect) []string {
	floatType, timeType := "REAL", "DATETIME"
	if dialect == DialectPostgres {
		floatType, timeType = "DOUBLE PRECISION", "TIMESTAMPTZ"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			source TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT,
			published_at %[2]s NOT NULL,
			importance_score %[3]s,
			recency_score %[3]s,
			final_score %[3]s,
			category TEXT,
			is_filtered BOOLEAN NOT NULL DEFAULT FALSE,
			ingested_at %[2]s NOT NULL,
			PRIMARY KEY (source, id)
		)`, tableName, timeType, floatType),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_articles_filtered_score ON %s (is_filtered, final_score DESC)`, tableName),
	}
}

func driverName(dialect Dialect) (string, error) {
	switch dialect {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
