package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// PGVectorStore implements port.VectorStore on a pgvector table. Records are
// keyed by (namespace, id); seq keeps first-insert order for zero-vector scans.
type PGVectorStore struct {
	store     *PostgresStore
	table     string
	namespace string
	dimension int
}

var _ port.VectorStore = (*PGVectorStore)(nil)

// NewPGVectorStore creates a vector store backed by the given Postgres store.
func NewPGVectorStore(store *PostgresStore, table, namespace string, dimension int) *PGVectorStore {
	return &PGVectorStore{
		store:     store,
		table:     pq.QuoteIdentifier(table),
		namespace: namespace,
		dimension: dimension,
	}
}

// EnsureSchema creates the vector extension, table, and HNSW index.
func (v *PGVectorStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			namespace  TEXT NOT NULL DEFAULT '',
			id         TEXT NOT NULL,
			seq        BIGSERIAL,
			embedding  vector(%d) NOT NULL,
			metadata   JSONB NOT NULL,
			PRIMARY KEY (namespace, id)
		)`, v.table, v.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(strings.Trim(v.table, `"`)+"_embedding_idx"), v.table),
	}
	for _, s := range stmts {
		if _, err := v.store.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure vector schema: %w", err)
		}
	}
	return nil
}

// Upsert writes records in one transaction, overwriting existing ids.
func (v *PGVectorStore) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (namespace, id, embedding, metadata)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (namespace, id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`, v.table))
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Embedding) != v.dimension {
			return fmt.Errorf("record %s: dimension %d, want %d", r.ID, len(r.Embedding), v.dimension)
		}
		md, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, v.namespace, r.ID, pgvector.NewVector(r.Embedding), md); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

// Query performs a cosine similarity search. A zero vector scans in insertion order.
func (v *PGVectorStore) Query(ctx context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.Match, error) {
	if topK <= 0 {
		return []domain.Match{}, nil
	}

	where := []string{"namespace = $1"}
	args := []any{v.namespace}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		if _, ok := (domain.Metadata{}).Field(k); !ok {
			return []domain.Match{}, nil
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, k, filter[k])
		where = append(where, fmt.Sprintf("metadata->>$%d::text = $%d", len(args)-1, len(args)))
	}

	var query string
	if isZeroVector(vector) {
		args = append(args, topK)
		query = fmt.Sprintf(`SELECT id, metadata, 0::float8 FROM %s WHERE %s ORDER BY seq LIMIT $%d`,
			v.table, strings.Join(where, " AND "), len(args))
	} else {
		args = append(args, pgvector.NewVector(vector), topK)
		vecArg, limitArg := len(args)-1, len(args)
		query = fmt.Sprintf(`SELECT id, metadata, 1 - (embedding <=> $%d) AS score
			FROM %s WHERE %s
			ORDER BY embedding <=> $%d, seq
			LIMIT $%d`,
			vecArg, v.table, strings.Join(where, " AND "), vecArg, limitArg)
	}

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

// FetchByIDs returns the stored records among ids in the namespace.
func (v *PGVectorStore) FetchByIDs(ctx context.Context, ids []string) ([]domain.Match, error) {
	if len(ids) == 0 {
		return []domain.Match{}, nil
	}
	query := fmt.Sprintf(`SELECT id, metadata, 0::float8 FROM %s WHERE namespace = $1 AND id = ANY($2) ORDER BY seq`, v.table)
	rows, err := v.store.db.QueryContext(ctx, query, v.namespace, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("fetch vectors: %w", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

// scanMatches reads (id, metadata, score) rows.
func scanMatches(rows *sql.Rows) ([]domain.Match, error) {
	matches := []domain.Match{}
	for rows.Next() {
		var (
			m  domain.Match
			md []byte
		)
		if err := rows.Scan(&m.ID, &md, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if err := json.Unmarshal(md, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata %s: %w", m.ID, err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// DeleteByIDs removes the given ids from the namespace.
func (v *PGVectorStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND id = ANY($2)`, v.table)
	if _, err := v.store.db.ExecContext(ctx, query, v.namespace, pq.Array(ids)); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

// DeleteAll removes every record in the namespace.
func (v *PGVectorStore) DeleteAll(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, v.table)
	if _, err := v.store.db.ExecContext(ctx, query, v.namespace); err != nil {
		return fmt.Errorf("delete all vectors: %w", err)
	}
	return nil
}

// Stats counts records per namespace across the whole table.
func (v *PGVectorStore) Stats(ctx context.Context) (*domain.IndexStats, error) {
	rows, err := v.store.db.QueryContext(ctx, fmt.Sprintf(`SELECT namespace, COUNT(*) FROM %s GROUP BY namespace`, v.table))
	if err != nil {
		return nil, fmt.Errorf("vector stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.IndexStats{Namespaces: map[string]domain.NamespaceStats{}}
	for rows.Next() {
		var (
			ns string
			n  int
		)
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Namespaces[ns] = domain.NamespaceStats{RecordCount: n}
		stats.TotalRecordCount += n
	}
	return stats, rows.Err()
}
