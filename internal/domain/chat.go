package domain

// Chat roles accepted from clients.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RetrievedContext is a passage returned by retrieval for a single question.
type RetrievedContext struct {
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
	Source   string  `json:"source"`
	FileName string  `json:"fileName,omitempty"`
}

// StreamDelta carries one piece of a streamed answer. A non-nil Err ends the stream.
type StreamDelta struct {
	Text string
	Err  error
}
