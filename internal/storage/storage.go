// Package storage persists chunk metadata for the chunked semantic index.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/hyperjump/kensaku/internal/models"
)

// ErrNotFound is returned when a chunk or meta key does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines chunk and meta persistence operations.
type Storage interface {
	// ReplaceChunks deletes every stored chunk and inserts chunks in one transaction.
	ReplaceChunks(ctx context.Context, chunks []*models.Chunk) error
	ListChunks(ctx context.Context) ([]*models.Chunk, error)
	GetChunk(ctx context.Context, movieID, chunkIndex int) (*models.Chunk, error)
	ChunksForMovie(ctx context.Context, movieID int) ([]*models.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)

	SetMeta(ctx context.Context, key, value string) error
	GetMeta(ctx context.Context, key string) (string, error)

	Close() error
}

// DiskUsageBytes sums the sizes of the regular files under paths, usually the
// cache directory, the chunk database and the Bleve index. A file reachable
// from more than one path is counted once, so a database inside the cache
// directory is not double counted. Blank and missing paths count as zero.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	seen := make(map[string]struct{})
	for _, root := range paths {
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root && errors.Is(err, fs.ErrNotExist) {
					return fs.SkipDir
				}
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if _, dup := seen[abs]; dup {
				return nil
			}
			seen[abs] = struct{}{}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("disk usage of %s: %w", root, err)
		}
	}
	return total, nil
}
