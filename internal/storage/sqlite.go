package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kensaku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private
// in-memory database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		movie_id INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (movie_id, chunk_index)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// ReplaceChunks swaps the whole chunk table for chunks.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, chunks []*models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (movie_id, chunk_index, total_chunks, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, ch := range chunks {
		if _, err := stmt.ExecContext(ctx, ch.MovieID, ch.ChunkIndex, ch.TotalChunks, ch.Content); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ch.Key(), err)
		}
	}
	return tx.Commit()
}

// ListChunks returns every chunk ordered by movie id and chunk index.
func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]*models.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT movie_id, chunk_index, total_chunks, content FROM chunks ORDER BY movie_id, chunk_index`)
}

// ChunksForMovie returns the chunks of one movie in order.
func (s *SQLiteStorage) ChunksForMovie(ctx context.Context, movieID int) ([]*models.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT movie_id, chunk_index, total_chunks, content FROM chunks WHERE movie_id = ? ORDER BY chunk_index`,
		movieID)
}

func (s *SQLiteStorage) queryChunks(ctx context.Context, query string, args ...interface{}) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.MovieID, &ch.ChunkIndex, &ch.TotalChunks, &ch.Content); err != nil {
			return nil, err
		}
		chunks = append(chunks, &ch)
	}
	return chunks, rows.Err()
}

// GetChunk returns one chunk or ErrNotFound.
func (s *SQLiteStorage) GetChunk(ctx context.Context, movieID, chunkIndex int) (*models.Chunk, error) {
	var ch models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT movie_id, chunk_index, total_chunks, content FROM chunks WHERE movie_id = ? AND chunk_index = ?`,
		movieID, chunkIndex,
	).Scan(&ch.MovieID, &ch.ChunkIndex, &ch.TotalChunks, &ch.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %d/%d: %w", movieID, chunkIndex, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// SetMeta upserts a meta value.
func (s *SQLiteStorage) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetMeta returns a meta value or ErrNotFound.
func (s *SQLiteStorage) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNotFound)
	}
	return v, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
