package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is a cached successful analysis.
type Entry struct {
	Analysis   string
	ModelUsed  string
	TokensUsed int
	CreatedAt  time.Time
}

// Store persists entries in SQLite keyed by request fingerprint.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		db.Close()
		return nil, fmt.Errorf("failed to restrict cache permissions: %w", err)
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS analysis_cache (
		fingerprint TEXT PRIMARY KEY,
		analysis TEXT NOT NULL,
		model_used TEXT NOT NULL,
		tokens_used INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("failed to create cache table: %w", err)
	}
	return nil
}

// Get returns nil, nil on a miss.
func (s *Store) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var e Entry
	var created int64
	err := s.db.QueryRowContext(ctx,
		"SELECT analysis, model_used, tokens_used, created_at FROM analysis_cache WHERE fingerprint = ?",
		fingerprint,
	).Scan(&e.Analysis, &e.ModelUsed, &e.TokensUsed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	e.CreatedAt = time.Unix(created, 0).UTC()
	return &e, nil
}

// Put inserts or replaces the entry for fingerprint.
func (s *Store) Put(ctx context.Context, fingerprint string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO analysis_cache (fingerprint, analysis, model_used, tokens_used, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(fingerprint) DO UPDATE SET
		analysis = excluded.analysis,
		model_used = excluded.model_used,
		tokens_used = excluded.tokens_used,
		created_at = excluded.created_at`,
		fingerprint, e.Analysis, e.ModelUsed, e.TokensUsed, e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Len returns the number of cached entries.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
