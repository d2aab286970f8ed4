package domain

import "time"

// UploadFile is a document received from the admin page.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadResult reports what an upload produced.
type UploadResult struct {
	ChunksProcessed int    `json:"chunksProcessed"`
	FileName        string `json:"fileName"`
	Source          string `json:"source"`
}

// DocumentSummary is aggregated from the vector records sharing a (source, fileName) pair.
type DocumentSummary struct {
	Source     string    `json:"source"`
	FileName   string    `json:"fileName"`
	FileType   string    `json:"fileType,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
	ChunkCount int       `json:"chunkCount"`
	WordCount  int       `json:"wordCount"`
	Tags       []string  `json:"tags"`
}

// Key identifies the document a summary belongs to.
func (d DocumentSummary) Key() string {
	return DocumentKey(d.Source, d.FileName)
}

// DocumentKey joins source and file name into a registry key.
func DocumentKey(source, fileName string) string {
	return source + "\x00" + fileName
}
