package port

import (
	"context"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

// VectorStore is a namespaced similarity index over VectorRecords.
type VectorStore interface {
	// Upsert inserts records, overwriting any existing record with the same id.
	Upsert(ctx context.Context, records []domain.VectorRecord) error

	// Query returns up to topK matches sorted by descending score.
	// A nil or empty filter matches every record. An all-zero vector
	// returns records in storage order with a score of 0.
	Query(ctx context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.Match, error)

	// FetchByIDs returns the records stored under ids, with a score of 0.
	// Unknown ids are skipped.
	FetchByIDs(ctx context.Context, ids []string) ([]domain.Match, error)

	// DeleteByIDs removes the given records. Unknown ids are ignored.
	DeleteByIDs(ctx context.Context, ids []string) error

	// DeleteAll removes every record in the namespace.
	DeleteAll(ctx context.Context) error

	// Stats reports record counts.
	Stats(ctx context.Context) (*domain.IndexStats, error)
}

// DocumentRegistry keeps one summary per (source, fileName) pair, so listing
// documents does not depend on scanning the vector index.
type DocumentRegistry interface {
	Put(summary domain.DocumentSummary) error
	Delete(source, fileName string) error
	Clear() error
	List() ([]domain.DocumentSummary, error)
}
