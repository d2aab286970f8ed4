package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

// MemoryVectorStore is an in-process vector store using brute-force cosine
// similarity. Records are lost on restart; use it for development and tests.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	namespace string
	ids       []string // insertion order, for stable zero-vector listing
	records   map[string]domain.VectorRecord
}

// NewMemoryVectorStore creates an empty store for the given namespace.
func NewMemoryVectorStore(namespace string) *MemoryVectorStore {
	return &MemoryVectorStore{
		namespace: namespace,
		records:   make(map[string]domain.VectorRecord),
	}
}

// Upsert stores records, replacing any with the same id.
func (s *MemoryVectorStore) Upsert(_ context.Context, records []domain.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, exists := s.records[r.ID]; !exists {
			s.ids = append(s.ids, r.ID)
		}
		s.records[r.ID] = r
	}
	return nil
}

// Query scores every record matching filter and returns the topK best.
func (s *MemoryVectorStore) Query(_ context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zero := isZeroVector(vector)
	matches := make([]domain.Match, 0, len(s.ids))
	for _, id := range s.ids {
		r := s.records[id]
		if !filter.Matches(r.Metadata) {
			continue
		}
		m := domain.Match{ID: r.ID, Metadata: r.Metadata}
		if !zero {
			m.Score = cosineSimilarity(vector, r.Embedding)
		}
		matches = append(matches, m)
	}
	if !zero {
		sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	}
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// FetchByIDs returns the stored records among ids.
func (s *MemoryVectorStore) FetchByIDs(_ context.Context, ids []string) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches := make([]domain.Match, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			matches = append(matches, domain.Match{ID: r.ID, Metadata: r.Metadata})
		}
	}
	return matches, nil
}

// DeleteByIDs removes the given ids.
func (s *MemoryVectorStore) DeleteByIDs(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			drop[id] = true
			delete(s.records, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := s.ids[:0]
	for _, id := range s.ids {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.ids = kept
	return nil
}

// DeleteAll empties the store.
func (s *MemoryVectorStore) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	s.records = make(map[string]domain.VectorRecord)
	return nil
}

// Stats reports the record count under the store's namespace.
func (s *MemoryVectorStore) Stats(_ context.Context) (*domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &domain.IndexStats{
		TotalRecordCount: len(s.records),
		Namespaces: map[string]domain.NamespaceStats{
			s.namespace: {RecordCount: len(s.records)},
		},
	}, nil
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// cosineSimilarity returns 0 for mismatched lengths or zero-norm vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
