package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/news"
)

// SQLiteStore is the default persistent tier. Writes go through a single
// connection; reads use a separate pool.
type SQLiteStore struct {
	path    string
	readDB  *sql.DB
	writeDB *sql.DB
	log     logger.Logger
	now     func() time.Time
}

const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

func OpenSQLite(dbPath string, log logger.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath+sqlitePragmas)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+sqlitePragmas)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &SQLiteStore{path: dbPath, readDB: readDB, writeDB: writeDB, log: log, now: time.Now}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS articles (
			external_id  TEXT PRIMARY KEY,
			id           TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			content      TEXT NOT NULL DEFAULT '',
			url          TEXT NOT NULL,
			image_url    TEXT NOT NULL DEFAULT '',
			source       TEXT NOT NULL DEFAULT '',
			author       TEXT NOT NULL DEFAULT '',
			language     TEXT NOT NULL,
			category     TEXT NOT NULL DEFAULT '',
			difficulty   TEXT NOT NULL DEFAULT '',
			published_at INTEGER NOT NULL,
			created_at   INTEGER NOT NULL,
			cached_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_articles_lang_cat ON articles(language, category, published_at DESC);
		CREATE INDEX IF NOT EXISTS idx_articles_cached ON articles(cached_at);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, articles []news.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (external_id, id, title, description, content, url, image_url,
			source, author, language, category, difficulty, published_at, created_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			content = excluded.content,
			image_url = excluded.image_url,
			cached_at = excluded.cached_at
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UnixMilli()
	saved := 0
	for _, a := range articles {
		_, err := stmt.ExecContext(ctx,
			news.ExternalID(a.URL), a.ID, a.Title, a.Description, a.Content, a.URL, a.ImageURL,
			a.Source, a.Author, a.Language, string(a.Category), a.Difficulty,
			a.PublishedAt.UnixMilli(), now, now,
		)
		if err != nil {
			s.log.Warn("persisting article failed",
				logger.String("title", a.Title),
				logger.String("url", a.URL),
				logger.Error(err),
			)
			continue
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing upsert: %w", err)
	}
	return saved, nil
}

func (s *SQLiteStore) ReadByLanguageAndCategory(ctx context.Context, language string, category news.Category, limit, offset int) ([]news.Article, error) {
	query := `SELECT id, title, description, content, url, image_url, source, author,
		language, category, difficulty, published_at
		FROM articles WHERE language = ?`
	args := []any{language}
	if category != "" {
		query += " AND category = ?"
		args = append(args, string(category))
	}
	if limit <= 0 {
		limit = news.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY published_at DESC, rowid ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var articles []news.Article
	for rows.Next() {
		var (
			a         news.Article
			cat       string
			published int64
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.Content, &a.URL, &a.ImageURL,
			&a.Source, &a.Author, &a.Language, &cat, &a.Difficulty, &published); err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		a.Category = news.Category(cat)
		a.PublishedAt = time.UnixMilli(published)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *SQLiteStore) PruneOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := s.now().Add(-age).UnixMilli()
	res, err := s.writeDB.ExecContext(ctx, "DELETE FROM articles WHERE cached_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning articles: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning articles: %w", err)
	}
	if n > 0 {
		if _, err := s.writeDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.log.Debug("wal checkpoint failed", logger.Error(err))
		}
	}
	return int(n), nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return n, nil
}

// Size returns the database file size in bytes.
func (s *SQLiteStore) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, fmt.Errorf("stat cache db: %w", err)
	}
	return info.Size(), nil
}
