package store

import (
	"context"
	"testing"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, source, fileName string, vec ...float32) domain.VectorRecord {
	return domain.VectorRecord{
		ID:        id,
		Embedding: vec,
		Metadata:  domain.Metadata{Source: source, FileName: fileName, Content: id},
	}
}

func TestMemoryVectorStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Upsert overwrites records with the same id", func(t *testing.T) {
		s := NewMemoryVectorStore("")
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{record("a", "s", "f", 1, 0)}))
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{record("a", "s", "g", 0, 1)}))

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalRecordCount)

		matches, err := s.Query(ctx, []float32{0, 1}, 10, nil)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "g", matches[0].Metadata.FileName)
	})

	t.Run("FetchByIDs skips unknown ids", func(t *testing.T) {
		s := NewMemoryVectorStore("")
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{record("a", "s", "f", 1, 0), record("b", "s", "g", 0, 1)}))

		got, err := s.FetchByIDs(ctx, []string{"b", "missing"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "b", got[0].ID)
		assert.Equal(t, "g", got[0].Metadata.FileName)
		assert.Zero(t, got[0].Score)
	})

	t.Run("Query sorts by descending similarity and honours topK", func(t *testing.T) {
		s := NewMemoryVectorStore("")
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{
			record("far", "s", "f", 0, 1),
			record("near", "s", "f", 1, 0.1),
			record("mid", "s", "f", 1, 1),
		}))

		matches, err := s.Query(ctx, []float32{1, 0}, 2, nil)

		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "near", matches[0].ID)
		assert.Equal(t, "mid", matches[1].ID)
		assert.Greater(t, matches[0].Score, matches[1].Score)
	})

	t.Run("Filter is an equality predicate over metadata", func(t *testing.T) {
		s := NewMemoryVectorStore("")
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{
			record("1", "s", "f", 1, 0),
			record("2", "s", "g", 1, 0),
			record("3", "t", "f", 1, 0),
		}))

		matches, err := s.Query(ctx, []float32{0, 0}, 100, domain.Filter{"source": "s", "fileName": "f"})

		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "1", matches[0].ID)
		assert.Zero(t, matches[0].Score)
	})

	t.Run("Unknown filter fields match nothing", func(t *testing.T) {
		s := NewMemoryVectorStore("")
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{record("1", "s", "f", 1, 0)}))

		matches, err := s.Query(ctx, []float32{1, 0}, 10, domain.Filter{"owner": "x"})

		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("DeleteByIDs and DeleteAll", func(t *testing.T) {
		s := NewMemoryVectorStore("portfolio")
		require.NoError(t, s.Upsert(ctx, []domain.VectorRecord{
			record("1", "s", "f", 1, 0),
			record("2", "s", "f", 0, 1),
		}))

		require.NoError(t, s.DeleteByIDs(ctx, []string{"1", "missing"}))
		matches, err := s.Query(ctx, []float32{0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "2", matches[0].ID)

		require.NoError(t, s.DeleteAll(ctx))
		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalRecordCount)
		assert.Contains(t, stats.Namespaces, "portfolio")
	})
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
