package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

const (
	payloadRecordID  = "record_id"
	payloadNamespace = "namespace"
)

// QdrantConfig configures the Qdrant REST client.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Namespace  string
	Dimension  int
	Timeout    time.Duration
}

// QdrantStore implements port.VectorStore over the Qdrant REST API. Record ids
// are mapped to UUIDv5 point ids; the original id and namespace live in the payload.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	namespace  string
	dimension  int
	client     *http.Client
}

var _ port.VectorStore = (*QdrantStore)(nil)

// NewQdrantStore creates the client. Call EnsureCollection before use.
func NewQdrantStore(cfg QdrantConfig) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		namespace:  cfg.Namespace,
		dimension:  cfg.Dimension,
		client:     &http.Client{Timeout: timeout},
	}
}

// PointID derives the Qdrant point id of a record id.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

// EnsureCollection creates the collection with cosine distance if it is missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	status, _, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	if status == http.StatusOK {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     s.dimension,
			"distance": "Cosine",
		},
	}
	_, _, err = s.do(ctx, http.MethodPut, s.collectionURL(""), body)
	return err
}

// Upsert writes points and waits for the write to be applied.
func (s *QdrantStore) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		payload, err := toPayload(r.Metadata)
		if err != nil {
			return err
		}
		payload[payloadRecordID] = r.ID
		payload[payloadNamespace] = s.namespace
		points[i] = map[string]any{
			"id":      PointID(r.ID),
			"vector":  r.Embedding,
			"payload": payload,
		}
	}
	_, _, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points})
	return err
}

// Query searches by vector, or scrolls when vector is all zeros.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.Match, error) {
	if topK <= 0 {
		return []domain.Match{}, nil
	}
	qf, ok := s.buildFilter(filter)
	if !ok {
		return []domain.Match{}, nil
	}

	var points []qdrantPoint

	if isZeroVector(vector) {
		req := map[string]any{"limit": topK, "with_payload": true, "filter": qf}
		var resp struct {
			Result struct {
				Points []qdrantPoint `json:"points"`
			} `json:"result"`
		}
		if err := s.postJSON(ctx, "/points/scroll", req, &resp); err != nil {
			return nil, err
		}
		points = resp.Result.Points
	} else {
		req := map[string]any{"vector": vector, "limit": topK, "with_payload": true, "filter": qf}
		var resp struct {
			Result []qdrantPoint `json:"result"`
		}
		if err := s.postJSON(ctx, "/points/search", req, &resp); err != nil {
			return nil, err
		}
		points = resp.Result
	}

	return decodePoints(points)
}

// FetchByIDs retrieves points by their record ids. Points owned by another
// namespace are skipped.
func (s *QdrantStore) FetchByIDs(ctx context.Context, ids []string) ([]domain.Match, error) {
	if len(ids) == 0 {
		return []domain.Match{}, nil
	}
	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	if err := s.postJSON(ctx, "/points", map[string]any{"ids": points, "with_payload": true}, &resp); err != nil {
		return nil, err
	}

	owned := resp.Result[:0]
	for _, p := range resp.Result {
		var ns struct {
			Namespace string `json:"namespace"`
		}
		if err := json.Unmarshal(p.Payload, &ns); err != nil {
			return nil, fmt.Errorf("qdrant payload: %w", err)
		}
		if ns.Namespace == s.namespace {
			owned = append(owned, p)
		}
	}
	matches, err := decodePoints(owned)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		matches[i].Score = 0
	}
	return matches, nil
}

type qdrantPoint struct {
	ID      any             `json:"id"`
	Score   float64         `json:"score"`
	Payload json.RawMessage `json:"payload"`
}

// decodePoints maps Qdrant points back to matches keyed by record id.
func decodePoints(points []qdrantPoint) ([]domain.Match, error) {
	matches := make([]domain.Match, 0, len(points))
	for _, p := range points {
		var ids struct {
			RecordID string `json:"record_id"`
		}
		m := domain.Match{Score: p.Score}
		if err := json.Unmarshal(p.Payload, &ids); err != nil {
			return nil, fmt.Errorf("qdrant payload: %w", err)
		}
		if err := json.Unmarshal(p.Payload, &m.Metadata); err != nil {
			return nil, fmt.Errorf("qdrant payload: %w", err)
		}
		m.ID = ids.RecordID
		matches = append(matches, m)
	}
	return matches, nil
}

// DeleteByIDs deletes points by their record ids.
func (s *QdrantStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}
	return s.postJSON(ctx, "/points/delete?wait=true", map[string]any{"points": points}, nil)
}

// DeleteAll deletes every point in the namespace.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	qf, _ := s.buildFilter(nil)
	return s.postJSON(ctx, "/points/delete?wait=true", map[string]any{"filter": qf}, nil)
}

// Stats reports the collection total and the exact count of this namespace.
func (s *QdrantStore) Stats(ctx context.Context) (*domain.IndexStats, error) {
	_, body, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil)
	if err != nil {
		return nil, err
	}
	var info struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("qdrant collection info: %w", err)
	}

	qf, _ := s.buildFilter(nil)
	var count struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, "/points/count", map[string]any{"filter": qf, "exact": true}, &count); err != nil {
		return nil, err
	}

	return &domain.IndexStats{
		TotalRecordCount: info.Result.PointsCount,
		Namespaces: map[string]domain.NamespaceStats{
			s.namespace: {RecordCount: count.Result.Count},
		},
	}, nil
}

// buildFilter converts f to a Qdrant "must" filter scoped to the namespace.
// It reports false when f names a field records never carry.
func (s *QdrantStore) buildFilter(f domain.Filter) (map[string]any, bool) {
	must := []map[string]any{
		{"key": payloadNamespace, "match": map[string]any{"value": s.namespace}},
	}
	for k, v := range f {
		if _, ok := (domain.Metadata{}).Field(k); !ok {
			return nil, false
		}
		must = append(must, map[string]any{"key": k, "match": map[string]any{"value": v}})
	}
	return map[string]any{"must": must}, true
}

func toPayload(md domain.Metadata) (map[string]any, error) {
	raw, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return payload, nil
}

func (s *QdrantStore) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *QdrantStore) postJSON(ctx context.Context, path string, body, out any) error {
	_, data, err := s.do(ctx, http.MethodPost, s.collectionURL(path), body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("qdrant decode %s: %w", path, err)
	}
	return nil
}

// do sends a request and returns the status and body. Non-2xx responses are errors.
func (s *QdrantStore) do(ctx context.Context, method, url string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("qdrant marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("qdrant %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("qdrant read: %w", err)
	}
	if resp.StatusCode >= 300 {
		return resp.StatusCode, data, fmt.Errorf("qdrant %s %s failed (%d): %s", method, url, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp.StatusCode, data, nil
}
