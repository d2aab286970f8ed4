package domain

import (
	"fmt"
	"time"
)

// ContentType is the coarse kind of portfolio content a chunk describes.
type ContentType string

// ContentType constants.
const (
	ContentTypeSkill      ContentType = "skill"
	ContentTypeProject    ContentType = "project"
	ContentTypeExperience ContentType = "experience"
	ContentTypeContact    ContentType = "contact"
	ContentTypeEducation  ContentType = "education"
	ContentTypeGeneral    ContentType = "general"
)

// Category is the technical area a chunk belongs to.
type Category string

// Category constants.
const (
	CategoryBlockchain Category = "blockchain"
	CategoryFrontend   Category = "frontend"
	CategoryBackend    Category = "backend"
	CategoryAI         Category = "ai"
	CategoryDatabase   Category = "database"
	CategoryDevOps     Category = "devops"
	CategoryGeneral    Category = "general"
)

// Importance ranks how central a chunk is to the portfolio.
type Importance string

// Importance constants.
const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Metadata is stored next to every vector. Content duplicates the chunk text
// so retrieval results can be shown without a second lookup.
type Metadata struct {
	Content     string      `json:"content"`
	Source      string      `json:"source"`
	FileName    string      `json:"fileName"`
	FileType    string      `json:"fileType"`
	ChunkIndex  int         `json:"chunkIndex"`
	UploadedAt  time.Time   `json:"uploadedAt"`
	ContentType ContentType `json:"contentType"`
	Category    Category    `json:"category"`
	Importance  Importance  `json:"importance"`
	Tags        []string    `json:"tags"`
}

// Field returns the string form of a filterable metadata field.
func (m Metadata) Field(name string) (string, bool) {
	switch name {
	case FieldSource:
		return m.Source, true
	case FieldFileName:
		return m.FileName, true
	case FieldFileType:
		return m.FileType, true
	case FieldContentType:
		return string(m.ContentType), true
	case FieldCategory:
		return string(m.Category), true
	case FieldImportance:
		return string(m.Importance), true
	default:
		return "", false
	}
}

// Filterable metadata field names.
const (
	FieldSource      = "source"
	FieldFileName    = "fileName"
	FieldFileType    = "fileType"
	FieldContentType = "contentType"
	FieldCategory    = "category"
	FieldImportance  = "importance"
)

// Filter is an equality predicate over metadata fields; all pairs must match.
type Filter map[string]string

// Matches reports whether m satisfies every pair in f. Unknown fields never match.
func (f Filter) Matches(m Metadata) bool {
	for k, want := range f {
		got, ok := m.Field(k)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// VectorRecord is one embedded chunk as persisted in the vector store.
type VectorRecord struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"-"`
	Metadata  Metadata  `json:"metadata"`
}

// RecordID derives the deterministic id of a chunk so that re-uploading the
// same file overwrites its previous vectors instead of duplicating them.
func RecordID(source, fileName string, chunkIndex int) string {
	return fmt.Sprintf("%s-%s-chunk-%d", source, fileName, chunkIndex)
}

// Match is a vector search hit, ordered by descending Score.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// NamespaceStats holds per-namespace record counts.
type NamespaceStats struct {
	RecordCount int `json:"recordCount"`
}

// IndexStats summarizes the vector index.
type IndexStats struct {
	TotalRecordCount int                       `json:"totalRecordCount"`
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
}
