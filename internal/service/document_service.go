package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// DefaultSource is used when an upload does not name its source.
const DefaultSource = "uploaded-document"

// DocumentConfig tunes the upload and listing pipeline.
type DocumentConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// ListTopK bounds the zero-vector scan used to list documents when no
	// registry is configured. Indexes holding more records than this lose
	// documents from the listing.
	ListTopK int
	// DeleteTopK bounds how many chunks a single filtered delete removes.
	DeleteTopK int
	// BatchEmbed embeds all chunks in one call; otherwise chunks are embedded
	// one by one with EmbedDelay between calls.
	BatchEmbed bool
	EmbedDelay time.Duration
}

// DocumentService manages the lifecycle of indexed documents:
// upload (chunk, classify, embed, upsert), list, delete, and delete-all.
type DocumentService struct {
	chunker  *Chunker
	embedder port.Embedder
	store    port.VectorStore
	registry port.DocumentRegistry
	cfg      DocumentConfig
	now      func() time.Time
}

// NewDocumentService wires the upload pipeline. registry may be nil.
func NewDocumentService(embedder port.Embedder, store port.VectorStore, registry port.DocumentRegistry, cfg DocumentConfig) (*DocumentService, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize, cfg.ChunkOverlap = DefaultChunkSize, DefaultChunkOverlap
	}
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.ListTopK <= 0 {
		cfg.ListTopK = 1000
	}
	if cfg.DeleteTopK <= 0 {
		cfg.DeleteTopK = 10000
	}
	return &DocumentService{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Upload indexes a plain-text or markdown file under source. Re-uploading the
// same (source, fileName) overwrites the previous chunks.
func (s *DocumentService) Upload(ctx context.Context, file domain.UploadFile, source string) (*domain.UploadResult, error) {
	if file.Name == "" || file.Data == nil {
		return nil, port.Validationf("No file provided")
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = DefaultSource
	}
	fileType, err := detectFileType(file)
	if err != nil {
		return nil, err
	}

	text := string(bytes.TrimPrefix(file.Data, []byte("\xef\xbb\xbf")))
	if !utf8.ValidString(text) {
		return nil, port.Validationf("File %s is not valid UTF-8 text", file.Name)
	}
	if strings.TrimSpace(text) == "" {
		return nil, port.ErrEmptyContent
	}

	slog.Info("processing upload", "file", file.Name, "source", source, "chars", utf8.RuneCountInString(text))

	chunks := s.chunker.Chunk(domain.DocumentKey(source, file.Name), text)
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		ids[i] = domain.RecordID(source, file.Name, c.Index)
	}
	if err := s.checkOwnership(ctx, source, file.Name, ids); err != nil {
		return nil, err
	}

	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	uploadedAt := s.now().UTC()
	records := make([]domain.VectorRecord, len(chunks))
	keep := make(map[string]bool, len(chunks))
	for i, c := range chunks {
		class := Classify(file.Name, c.Text)
		keep[ids[i]] = true
		records[i] = domain.VectorRecord{
			ID:        ids[i],
			Embedding: vectors[i],
			Metadata: domain.Metadata{
				Content:     c.Text,
				Source:      source,
				FileName:    file.Name,
				FileType:    fileType,
				ChunkIndex:  c.Index,
				UploadedAt:  uploadedAt,
				ContentType: class.ContentType,
				Category:    class.Category,
				Importance:  class.Importance,
				Tags:        class.Tags,
			},
		}
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		return nil, &port.UpstreamError{Op: "vector upsert", Err: err}
	}
	if err := s.pruneStale(ctx, source, file.Name, keep); err != nil {
		return nil, err
	}

	if s.registry != nil {
		summaries := aggregate(recordMatches(records))
		if err := s.registry.Put(summaries[0]); err != nil {
			return nil, fmt.Errorf("registry put: %w", err)
		}
	}

	slog.Info("upload indexed", "file", file.Name, "source", source, "chunks", len(chunks))
	return &domain.UploadResult{
		ChunksProcessed: len(chunks),
		FileName:        file.Name,
		Source:          source,
	}, nil
}

// List returns one summary per (source, fileName). Without a registry it
// scans the index with a zero vector, which misses documents once the index
// holds more than ListTopK records.
func (s *DocumentService) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	if s.registry != nil {
		docs, err := s.registry.List()
		if err != nil {
			return nil, fmt.Errorf("registry list: %w", err)
		}
		return docs, nil
	}

	matches, err := s.store.Query(ctx, s.zeroVector(), s.cfg.ListTopK, nil)
	if err != nil {
		return nil, &port.UpstreamError{Op: "vector query", Err: err}
	}
	if len(matches) >= s.cfg.ListTopK {
		slog.Warn("document listing hit the scan limit; some documents may be missing", "limit", s.cfg.ListTopK)
	}
	return aggregate(matches), nil
}

// Delete removes every chunk of (source, fileName) and returns how many were deleted.
func (s *DocumentService) Delete(ctx context.Context, source, fileName string) (int, error) {
	if source == "" || fileName == "" {
		return 0, port.Validationf("Source and fileName parameters required")
	}

	ids, err := s.chunkIDs(ctx, source, fileName)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, &port.NotFoundError{Msg: "Document not found"}
	}

	if err := s.store.DeleteByIDs(ctx, ids); err != nil {
		return 0, &port.UpstreamError{Op: "vector delete", Err: err}
	}
	if s.registry != nil {
		if err := s.registry.Delete(source, fileName); err != nil {
			return 0, fmt.Errorf("registry delete: %w", err)
		}
	}

	slog.Info("document deleted", "source", source, "file", fileName, "chunks", len(ids))
	return len(ids), nil
}

// DeleteAll wipes the whole namespace. Confirmation is the caller's concern.
func (s *DocumentService) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAll(ctx); err != nil {
		return &port.UpstreamError{Op: "vector delete all", Err: err}
	}
	if s.registry != nil {
		if err := s.registry.Clear(); err != nil {
			return fmt.Errorf("registry clear: %w", err)
		}
	}
	slog.Warn("all documents deleted")
	return nil
}

// Stats reports record counts from the vector store.
func (s *DocumentService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, &port.UpstreamError{Op: "vector stats", Err: err}
	}
	return stats, nil
}

func (s *DocumentService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	if s.cfg.BatchEmbed {
		var err error
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, asEmbeddingError(err)
		}
	} else {
		vectors = make([][]float32, 0, len(texts))
		for i, t := range texts {
			if i > 0 && s.cfg.EmbedDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(s.cfg.EmbedDelay):
				}
			}
			v, err := s.embedder.Embed(ctx, t)
			if err != nil {
				return nil, asEmbeddingError(err)
			}
			vectors = append(vectors, v)
		}
	}

	if len(vectors) != len(texts) {
		return nil, &port.EmbeddingError{Err: fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(texts))}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, &port.EmbeddingError{Err: fmt.Errorf("empty vector for chunk %d", i)}
		}
	}
	return vectors, nil
}

// pruneStale removes chunks left over from a previous, longer upload of the same file.
// checkOwnership rejects an upload whose record ids are already held by a
// different (source, fileName) pair, e.g. "a-b"/"c.txt" against "a"/"b-c.txt".
func (s *DocumentService) checkOwnership(ctx context.Context, source, fileName string, ids []string) error {
	existing, err := s.store.FetchByIDs(ctx, ids)
	if err != nil {
		return &port.UpstreamError{Op: "vector fetch", Err: err}
	}
	for _, m := range existing {
		if m.Metadata.Source != source || m.Metadata.FileName != fileName {
			return port.Validationf("File %s in source %s would overwrite %s in source %s. Rename the file or use another source",
				fileName, source, m.Metadata.FileName, m.Metadata.Source)
		}
	}
	return nil
}

func (s *DocumentService) pruneStale(ctx context.Context, source, fileName string, keep map[string]bool) error {
	ids, err := s.chunkIDs(ctx, source, fileName)
	if err != nil {
		return err
	}
	var stale []string
	for _, id := range ids {
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := s.store.DeleteByIDs(ctx, stale); err != nil {
		return &port.UpstreamError{Op: "vector delete", Err: err}
	}
	slog.Info("pruned stale chunks", "file", fileName, "source", source, "chunks", len(stale))
	return nil
}

func (s *DocumentService) chunkIDs(ctx context.Context, source, fileName string) ([]string, error) {
	matches, err := s.store.Query(ctx, s.zeroVector(), s.cfg.DeleteTopK, domain.Filter{
		domain.FieldSource:   source,
		domain.FieldFileName: fileName,
	})
	if err != nil {
		return nil, &port.UpstreamError{Op: "vector query", Err: err}
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	return ids, nil
}

func (s *DocumentService) zeroVector() []float32 {
	return make([]float32, s.embedder.Dimension())
}

func asEmbeddingError(err error) error {
	if _, ok := err.(*port.EmbeddingError); ok {
		return err
	}
	return &port.EmbeddingError{Err: err}
}

// detectFileType accepts plain text and markdown only. PDFs are rejected with
// a hint to convert them, rather than parsed.
func detectFileType(file domain.UploadFile) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Name))
	mime := strings.ToLower(strings.TrimSpace(strings.Split(file.ContentType, ";")[0]))

	switch {
	case ext == ".pdf" || mime == "application/pdf":
		return "", port.Validationf("PDF files are not supported. Convert %s to .txt or .md and upload it again", file.Name)
	case ext == ".md" || ext == ".markdown" || mime == "text/markdown":
		return "text/markdown", nil
	case ext == ".txt" || mime == "text/plain":
		return "text/plain", nil
	default:
		return "", port.Validationf("Unsupported file type. Supported: TXT, MD")
	}
}

func recordMatches(records []domain.VectorRecord) []domain.Match {
	out := make([]domain.Match, len(records))
	for i, r := range records {
		out[i] = domain.Match{ID: r.ID, Metadata: r.Metadata}
	}
	return out
}

// aggregate groups matches by (source, fileName), summing chunk and word
// counts and taking the union of tags in first-seen order.
func aggregate(matches []domain.Match) []domain.DocumentSummary {
	byKey := make(map[string]*domain.DocumentSummary)
	seenTags := make(map[string]map[string]bool)
	for _, m := range matches {
		md := m.Metadata
		if md.Source == "" || md.FileName == "" {
			continue
		}
		key := domain.DocumentKey(md.Source, md.FileName)
		doc, ok := byKey[key]
		if !ok {
			doc = &domain.DocumentSummary{
				Source:   md.Source,
				FileName: md.FileName,
				FileType: md.FileType,
				Tags:     []string{},
			}
			byKey[key] = doc
			seenTags[key] = map[string]bool{}
		}
		doc.ChunkCount++
		doc.WordCount += len(strings.Fields(md.Content))
		if md.UploadedAt.After(doc.UploadedAt) {
			doc.UploadedAt = md.UploadedAt
		}
		for _, tag := range md.Tags {
			if !seenTags[key][tag] {
				seenTags[key][tag] = true
				doc.Tags = append(doc.Tags, tag)
			}
		}
	}

	docs := make([]domain.DocumentSummary, 0, len(byKey))
	for _, d := range byKey {
		docs = append(docs, *d)
	}
	sortSummaries(docs)
	return docs
}

func sortSummaries(docs []domain.DocumentSummary) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Source != docs[j].Source {
			return docs[i].Source < docs[j].Source
		}
		return docs[i].FileName < docs[j].FileName
	})
}
