package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var articleColumns = []string{
	"id", "title", "url", "source", "content", "summary", "author", "published_date",
	"image_url", "tags", "keywords", "categories", "relevance_score", "time_period", "scraped_at",
}

// PostgresStore keeps articles in PostgreSQL. The unique url constraint with
// ON CONFLICT DO NOTHING makes insert-if-absent atomic across writers.
type PostgresStore struct {
	db   *sql.DB
	psql sq.StatementBuilderType
	now  func() time.Time
	log  logger.Logger
}

// OpenPostgres connects, verifies the connection and optionally applies migrations.
func OpenPostgres(ctx context.Context, cfg Config, log logger.Logger) (*PostgresStore, error) {
	log = logger.Ensure(log)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.Migrate {
		if err := runMigrations(db, log); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	log.InfoObj("article store opened", "store_open", map[string]any{
		"driver":         DriverPostgres,
		"max_open_conns": cfg.MaxOpenConns,
		"migrated":       cfg.Migrate,
	})

	return newPostgresStore(db, log), nil
}

func newPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:  time.Now,
		log:  logger.Ensure(log),
	}
}

// runMigrations applies every pending embedded migration.
func runMigrations(db *sql.DB, log logger.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("get migration version: %w", err)
	}

	log.InfoObj("migrations completed", "store_migrated", map[string]any{
		"version": version,
		"dirty":   dirty,
	})
	return nil
}

// FindByURL returns the article stored under url.
func (s *PostgresStore) FindByURL(ctx context.Context, url string) (domain.StoredArticle, error) {
	return s.getOne(ctx, sq.Eq{"url": url})
}

// Insert stores a single article if its URL is new.
func (s *PostgresStore) Insert(ctx context.Context, a domain.Article) (domain.StoredArticle, bool, error) {
	inserted, err := s.InsertBatch(ctx, []domain.Article{a})
	if err != nil {
		return domain.StoredArticle{}, false, err
	}
	if len(inserted) == 1 {
		return inserted[0], true, nil
	}
	existing, err := s.FindByURL(ctx, a.URL)
	return existing, false, err
}

// InsertBatch inserts new articles inside one transaction.
func (s *PostgresStore) InsertBatch(ctx context.Context, articles []domain.Article) ([]domain.StoredArticle, error) {
	if len(articles) == 0 {
		return []domain.StoredArticle{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now()
	inserted := make([]domain.StoredArticle, 0, len(articles))

	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		stored := newStored(0, a, now)

		query, args, err := buildInsertQuery(s.psql, stored)
		if err != nil {
			return nil, fmt.Errorf("build insert: %w", err)
		}

		var id int64
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert article %s: %w", a.URL, err)
		}

		stored.ID = id
		inserted = append(inserted, stored)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Get returns the article with the given id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (domain.StoredArticle, error) {
	return s.getOne(ctx, sq.Eq{"id": id})
}

// List returns one page of articles matching f.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]domain.StoredArticle, error) {
	query, args, err := buildListQuery(s.psql, f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer rows.Close()

	out := []domain.StoredArticle{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes the article with the given id.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	query, args, err := s.psql.Delete("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete article %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete article %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of stored articles.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	query, args, err := s.psql.Select("COUNT(*)").From("articles").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count articles: %w", err)
	}
	return n, nil
}

// CountByCategory counts articles per category.
func (s *PostgresStore) CountByCategory(ctx context.Context) (map[string]int, error) {
	query, args, err := s.psql.
		Select("c", "COUNT(*)").
		From("articles, unnest(categories) AS c").
		GroupBy("c").
		ToSql()
	if err != nil {
		return nil, err
	}
	return s.countQuery(ctx, query, args)
}

// CountBySource counts articles per source name.
func (s *PostgresStore) CountBySource(ctx context.Context) (map[string]int, error) {
	query, args, err := s.psql.Select("source", "COUNT(*)").From("articles").GroupBy("source").ToSql()
	if err != nil {
		return nil, err
	}
	return s.countQuery(ctx, query, args)
}

// DistinctSources returns the sorted set of source names.
func (s *PostgresStore) DistinctSources(ctx context.Context) ([]string, error) {
	query, args, err := s.psql.Select("DISTINCT source").From("articles").OrderBy("source").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct sources: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DateRange returns the earliest and latest publication dates.
func (s *PostgresStore) DateRange(ctx context.Context) (DateRange, error) {
	query, args, err := s.psql.Select("MIN(published_date)", "MAX(published_date)").From("articles").ToSql()
	if err != nil {
		return DateRange{}, err
	}

	var earliest, latest sql.NullTime
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&earliest, &latest); err != nil {
		return DateRange{}, fmt.Errorf("date range: %w", err)
	}

	var r DateRange
	if earliest.Valid {
		r.Earliest = earliest.Time.UTC()
	}
	if latest.Valid {
		r.Latest = latest.Time.UTC()
	}
	return r, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) getOne(ctx context.Context, where sq.Sqlizer) (domain.StoredArticle, error) {
	query, args, err := s.psql.Select(articleColumns...).From("articles").Where(where).Limit(1).ToSql()
	if err != nil {
		return domain.StoredArticle{}, err
	}

	a, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredArticle{}, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) countQuery(ctx context.Context, query string, args []any) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count query: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}
	return counts, rows.Err()
}

func buildInsertQuery(psql sq.StatementBuilderType, a domain.StoredArticle) (string, []any, error) {
	var published any
	if a.HasDate() {
		published = a.PublishedAt
	}
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}

	return psql.Insert("articles").
		Columns(articleColumns[1:]...).
		Values(
			a.Title, a.URL, a.Source, a.Content, a.Summary, a.Author, published,
			a.ImageURL, pq.Array(tags), pq.Array(a.Keywords), pq.Array(a.Categories),
			a.RelevanceScore, a.TimePeriod, a.ScrapedAt,
		).
		Suffix("ON CONFLICT (url) DO NOTHING RETURNING id").
		ToSql()
}

func buildListQuery(psql sq.StatementBuilderType, f Filter) sq.SelectBuilder {
	qb := psql.Select(articleColumns...).From("articles")

	if f.Source != "" {
		qb = qb.Where("source ILIKE ?", "%"+escapeLike(f.Source)+"%")
	}
	if f.Category != "" {
		qb = qb.Where("? = ANY(categories)", strings.ToLower(f.Category))
	}
	if f.Keyword != "" {
		qb = qb.Where("EXISTS (SELECT 1 FROM unnest(keywords) AS k WHERE k ILIKE ?)", "%"+escapeLike(f.Keyword)+"%")
	}
	if f.MinRelevance != nil {
		qb = qb.Where(sq.GtOrEq{"relevance_score": *f.MinRelevance})
	}
	if !f.DateFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"published_date": f.DateFrom})
	}
	if !f.DateTo.IsZero() {
		qb = qb.Where(sq.LtOrEq{"published_date": f.DateTo})
	}

	qb = qb.OrderBy("published_date DESC NULLS LAST", "id DESC")
	if f.Limit > 0 {
		qb = qb.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		qb = qb.Offset(uint64(f.Offset))
	}
	return qb
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.StoredArticle, error) {
	var (
		a         domain.StoredArticle
		published sql.NullTime
		tags      []string
		keywords  []string
		cats      []string
	)

	err := row.Scan(
		&a.ID, &a.Title, &a.URL, &a.Source, &a.Content, &a.Summary, &a.Author, &published,
		&a.ImageURL, pq.Array(&tags), pq.Array(&keywords), pq.Array(&cats),
		&a.RelevanceScore, &a.TimePeriod, &a.ScrapedAt,
	)
	if err != nil {
		return domain.StoredArticle{}, err
	}

	if published.Valid {
		a.PublishedAt = published.Time.UTC()
	}
	a.ScrapedAt = a.ScrapedAt.UTC()
	a.Tags = tags
	a.Keywords = nonNil(keywords)
	a.Categories = nonNil(cats)
	return a, nil
}
