package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
)

// ChatHandler streams grounded answers over Server-Sent Events.
type ChatHandler struct {
	chat    *service.ChatService
	timeout time.Duration
}

// NewChatHandler creates a new chat handler. timeout bounds one whole answer.
func NewChatHandler(chat *service.ChatService, timeout time.Duration) *ChatHandler {
	return &ChatHandler{chat: chat, timeout: timeout}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Post("/chat", h.Chat)
}

type sourceEvent struct {
	Source   string  `json:"source"`
	FileName string  `json:"fileName,omitempty"`
	Score    float64 `json:"score"`
}

// Chat answers {messages:[{role,content}]}. The stream is a "sources" event,
// then one data line per token ({"delta": "..."}), then "done" or "error".
func (h *ChatHandler) Chat(c fiber.Ctx) error {
	var body struct {
		Messages []domain.ChatMessage `json:"messages"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return writeError(c, port.Validationf("Invalid request format"))
	}

	// The stream outlives this handler; its context must not be the request's.
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	deltas, contexts, err := h.chat.StreamAnswer(ctx, body.Messages)
	if err != nil {
		cancel()
		return writeError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sources := make([]sourceEvent, len(contexts))
	for i, rc := range contexts {
		sources[i] = sourceEvent{Source: rc.Source, FileName: rc.FileName, Score: rc.Score}
	}

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		writeEvent(w, "sources", sources)
		if err := w.Flush(); err != nil {
			return
		}

		for d := range deltas {
			if d.Err != nil {
				slog.Error("chat stream failed", "error", d.Err)
				writeEvent(w, "error", fiber.Map{"error": d.Err.Error()})
				_ = w.Flush()
				return
			}
			data, _ := json.Marshal(fiber.Map{"delta": d.Text})
			fmt.Fprintf(w, "data: %s\n\n", data)
			if err := w.Flush(); err != nil {
				slog.Info("chat client disconnected")
				return
			}
		}

		if ctx.Err() != nil {
			writeEvent(w, "error", fiber.Map{"error": "answer timed out"})
		} else {
			writeEvent(w, "done", fiber.Map{})
		}
		_ = w.Flush()
	})
}

func writeEvent(w *bufio.Writer, event string, payload any) {
	data, _ := json.Marshal(payload)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
