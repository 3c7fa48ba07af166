package indexer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
)

var (
	// ErrInvalidChunkSize is returned for a chunk size below 1.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")
	// ErrInvalidOverlap is returned for a negative overlap or one not smaller than the chunk size.
	ErrInvalidOverlap = errors.New("overlap must be in [0, chunk size)")
)

// Chunker splits text into windows of size units where consecutive windows
// share overlap units. Units are words for Chunk and sentences for
// SemanticChunk. An overlap of 0 gives plain fixed-size chunks.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap in units.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: got overlap %d for size %d", ErrInvalidOverlap, chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// String describes the window settings, e.g. "size=4,overlap=1".
func (c *Chunker) String() string {
	return fmt.Sprintf("size=%d,overlap=%d", c.chunkSize, c.chunkOverlap)
}

// Chunk splits text into word windows joined by single spaces.
func (c *Chunker) Chunk(text string) []string {
	return c.join(strings.Fields(text))
}

// SemanticChunk splits text into sentences and groups them into windows of
// chunkSize sentences.
func (c *Chunker) SemanticChunk(text string) []string {
	return c.join(SplitSentences(text))
}

func (c *Chunker) join(units []string) []string {
	windows := window(units, c.chunkSize, c.chunkOverlap)
	out := make([]string, len(windows))
	for i, w := range windows {
		out[i] = strings.Join(w, " ")
	}
	return out
}

// window returns consecutive slices of units. Every window after the first
// starts overlap units before the previous one ended; the last may be short.
func window(units []string, size, overlap int) [][]string {
	n := len(units)
	if n == 0 {
		return nil
	}
	var out [][]string
	for start := 0; ; start += size - overlap {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, units[start:end])
		if end == n {
			return out
		}
	}
}

// SplitSentences splits text into sentences. A sentence ends at a word whose
// last character is '.', '!' or '?'; trailing words without a terminator form
// the final sentence.
func SplitSentences(text string) []string {
	var (
		sentences []string
		current   []string
	)
	for _, w := range strings.Fields(text) {
		current = append(current, w)
		if strings.ContainsAny(w[len(w)-1:], ".!?") {
			sentences = append(sentences, strings.Join(current, " "))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, strings.Join(current, " "))
	}
	return sentences
}

// ChunkMovie semantically chunks a movie description. Movies with an empty
// description yield no chunks.
func (c *Chunker) ChunkMovie(m *models.Movie) []*models.Chunk {
	pieces := c.SemanticChunk(m.Description)
	chunks := make([]*models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &models.Chunk{
			ChunkMetadata: models.ChunkMetadata{
				MovieID:     m.ID,
				ChunkIndex:  i,
				TotalChunks: len(pieces),
			},
			Content: p,
		}
	}
	return chunks
}
