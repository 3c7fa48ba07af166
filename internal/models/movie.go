// Package models defines core data structures for movies, chunks, queries, and search results.
package models

import "strconv"

// Movie is a single catalog document. Movies are immutable once loaded; identity is ID.
type Movie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// IndexText returns the text indexed by the keyword index.
func (m *Movie) IndexText() string {
	return m.Title + " " + m.Description
}

// EmbeddingText returns the text embedded for document-level semantic search.
func (m *Movie) EmbeddingText() string {
	return m.Title + ": " + m.Description
}

// ChunkMetadata links a chunk vector back to its source movie.
type ChunkMetadata struct {
	MovieID     int `json:"movie_id" db:"movie_id"`
	ChunkIndex  int `json:"chunk_index" db:"chunk_index"`
	TotalChunks int `json:"total_chunks" db:"total_chunks"`
}

// Key returns the chunk's vector id, "movieID/chunkIndex".
func (m ChunkMetadata) Key() string {
	return strconv.Itoa(m.MovieID) + "/" + strconv.Itoa(m.ChunkIndex)
}

// Chunk is a piece of a movie description used for chunked semantic indexing.
type Chunk struct {
	ChunkMetadata
	Content   string    `json:"content" db:"content"`
	Embedding []float32 `json:"-" db:"-"`
}
