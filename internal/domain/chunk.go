package domain

// Chunk is a bounded window of a document's text, the unit of embedding.
// Start and End are rune offsets into the original text.
type Chunk struct {
	Text        string `json:"text"`
	Index       int    `json:"index"`
	SourceDocID string `json:"sourceDocId"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
}
