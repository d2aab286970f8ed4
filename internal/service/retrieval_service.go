package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// RetrievalConfig tunes context retrieval.
type RetrievalConfig struct {
	TopK int
	// FallbackThreshold is the best score under which identity questions are
	// re-queried with the expanded persona query. Zero disables the fallback.
	FallbackThreshold float64
}

// RetrievalService finds the passages most relevant to a question.
type RetrievalService struct {
	embedder port.Embedder
	store    port.VectorStore
	persona  Persona
	cfg      RetrievalConfig
}

// NewRetrievalService creates a retrieval service.
func NewRetrievalService(embedder port.Embedder, store port.VectorStore, persona Persona, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &RetrievalService{embedder: embedder, store: store, persona: persona, cfg: cfg}
}

// TopK returns the default number of passages returned.
func (s *RetrievalService) TopK() int { return s.cfg.TopK }

// Retrieve returns up to topK passages for query, best first. It never fails:
// upstream errors are logged and yield an empty result. topK <= 0 uses the default.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, topK int) []domain.RetrievedContext {
	if topK <= 0 {
		topK = s.cfg.TopK
	}

	matches, err := s.search(ctx, query, topK)
	if err != nil {
		slog.Warn("retrieval failed", "error", err, "top_k", topK)
		return []domain.RetrievedContext{}
	}

	if s.needsFallback(matches, query) {
		expanded := s.persona.ExpandedQuery()
		slog.Debug("retrieval fallback", "query", query, "expanded", expanded)
		extra, err := s.search(ctx, expanded, topK)
		if err != nil {
			slog.Warn("fallback retrieval failed", "error", err)
		} else {
			matches = mergeMatches(matches, extra, topK)
		}
	}

	out := make([]domain.RetrievedContext, 0, len(matches))
	for _, m := range matches {
		src := m.Metadata.Source
		if src == "" {
			src = "unknown"
		}
		out = append(out, domain.RetrievedContext{
			Content:  m.Metadata.Content,
			Score:    min(max(m.Score, 0), 1),
			Source:   src,
			FileName: m.Metadata.FileName,
		})
	}
	return out
}

func (s *RetrievalService) search(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.store.Query(ctx, vec, topK, nil)
}

func (s *RetrievalService) needsFallback(matches []domain.Match, query string) bool {
	if s.cfg.FallbackThreshold <= 0 || !s.persona.IsIdentityQuestion(query) {
		return false
	}
	return len(matches) == 0 || matches[0].Score < s.cfg.FallbackThreshold
}

// mergeMatches keeps the best score per id and returns the topK highest.
func mergeMatches(a, b []domain.Match, topK int) []domain.Match {
	best := make(map[string]domain.Match, len(a)+len(b))
	order := make([]string, 0, len(a)+len(b))
	for _, m := range append(append([]domain.Match{}, a...), b...) {
		cur, ok := best[m.ID]
		if !ok {
			order = append(order, m.ID)
		}
		if !ok || m.Score > cur.Score {
			best[m.ID] = m
		}
	}
	out := make([]domain.Match, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	sortMatches(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

func sortMatches(m []domain.Match) {
	sort.SliceStable(m, func(i, j int) bool { return m[i].Score > m[j].Score })
}
