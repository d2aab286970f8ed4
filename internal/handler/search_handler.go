package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/port"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
)

// SearchHandler exposes retrieval without generation.
type SearchHandler struct {
	retrieval *service.RetrievalService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(retrieval *service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

// Register sets up search routes.
func (h *SearchHandler) Register(router fiber.Router) {
	router.Post("/search", h.Search)
}

// Search returns the passages a chat answer for query would be grounded on.
func (h *SearchHandler) Search(c fiber.Ctx) error {
	var body struct {
		Query string `json:"query"`
		TopK  int    `json:"topK"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return writeError(c, port.Validationf("Invalid request format"))
	}
	if strings.TrimSpace(body.Query) == "" {
		return writeError(c, port.Validationf("Query is required"))
	}

	results := h.retrieval.Retrieve(c.Context(), body.Query, body.TopK)
	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}
