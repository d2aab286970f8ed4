package service

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

const fakeDim = 8

// fakeEmbedder hashes words into a small bag-of-words vector. Vectors listed
// in fixed are returned verbatim for the matching text.
type fakeEmbedder struct {
	mu         sync.Mutex
	fixed      map[string][]float32
	err        error
	short      bool
	calls      []string
	batchCalls int
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }

func (f *fakeEmbedder) Dimension() int { return fakeDim }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, f.vector(t))
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEmbedder) vector(text string) []float32 {
	if v, ok := f.fixed[text]; ok {
		return v
	}
	v := make([]float32, fakeDim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%fakeDim]++
	}
	v[0] += 0.01
	return v
}

// recordingStore wraps a VectorStore and counts mutations.
type recordingStore struct {
	port.VectorStore
	upserts  int
	deletes  int
	queryErr error
	fetchErr error
}

func (r *recordingStore) FetchByIDs(ctx context.Context, ids []string) ([]domain.Match, error) {
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	return r.VectorStore.FetchByIDs(ctx, ids)
}

func (r *recordingStore) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	r.upserts++
	return r.VectorStore.Upsert(ctx, records)
}

func (r *recordingStore) DeleteByIDs(ctx context.Context, ids []string) error {
	r.deletes++
	return r.VectorStore.DeleteByIDs(ctx, ids)
}

func (r *recordingStore) Query(ctx context.Context, vector []float32, topK int, filter domain.Filter) ([]domain.Match, error) {
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	return r.VectorStore.Query(ctx, vector, topK, filter)
}

// fakeChatModel replays tokens, or fails before streaming when err is set.
type fakeChatModel struct {
	tokens    []string
	err       error
	streamErr error
	got       []domain.ChatMessage
	opts      port.ChatOptions
}

func (f *fakeChatModel) ModelName() string { return "fake-chat" }

func (f *fakeChatModel) ChatStream(ctx context.Context, messages []domain.ChatMessage, opts port.ChatOptions) (<-chan domain.StreamDelta, error) {
	f.got = messages
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.StreamDelta)
	go func() {
		defer close(ch)
		for _, t := range f.tokens {
			select {
			case ch <- domain.StreamDelta{Text: t}:
			case <-ctx.Done():
				select {
				case ch <- domain.StreamDelta{Err: ctx.Err()}:
				default:
				}
				return
			}
		}
		if f.streamErr != nil {
			ch <- domain.StreamDelta{Err: f.streamErr}
		}
	}()
	return ch, nil
}

type memRegistry struct {
	docs map[string]domain.DocumentSummary
	err  error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{docs: map[string]domain.DocumentSummary{}}
}

func (m *memRegistry) Put(s domain.DocumentSummary) error {
	if m.err != nil {
		return m.err
	}
	m.docs[s.Key()] = s
	return nil
}

func (m *memRegistry) Delete(source, fileName string) error {
	delete(m.docs, domain.DocumentKey(source, fileName))
	return nil
}

func (m *memRegistry) Clear() error {
	m.docs = map[string]domain.DocumentSummary{}
	return nil
}

func (m *memRegistry) List() ([]domain.DocumentSummary, error) {
	out := make([]domain.DocumentSummary, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	sortSummaries(out)
	return out, nil
}

var errBoom = errors.New("boom")
