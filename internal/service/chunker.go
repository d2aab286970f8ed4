package service

import (
	"fmt"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

// Default chunking window, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into fixed-size windows that share Overlap characters
// with their predecessor. Offsets count runes, so multi-byte characters are
// never cut in half.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window settings. Overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of characters shared by consecutive windows.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk walks text in steps of size-overlap. The last window may be shorter
// than size and always ends at the end of the text. Empty text yields nil.
func (c *Chunker) Chunk(docID, text string) []domain.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]domain.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, domain.Chunk{
			Text:        string(runes[start:end]),
			Index:       len(chunks),
			SourceDocID: docID,
			Start:       start,
			End:         end,
		})
	}
	return chunks
}
