package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/service"
)

// MetaHandler serves health, suggestion, and index statistics endpoints.
type MetaHandler struct {
	appName string
	version string
	persona service.Persona
	docs    *service.DocumentService
}

// NewMetaHandler creates a new meta handler.
func NewMetaHandler(appName, version string, persona service.Persona, docs *service.DocumentService) *MetaHandler {
	return &MetaHandler{appName: appName, version: version, persona: persona, docs: docs}
}

// Register sets up meta routes.
func (h *MetaHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/suggestions", h.Suggestions)
	router.Get("/stats", h.Stats)
}

// Health reports liveness.
func (h *MetaHandler) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"app":     h.appName,
		"version": h.version,
	})
}

// Suggestions returns the starter and follow-up questions for the chat UI.
func (h *MetaHandler) Suggestions(c fiber.Ctx) error {
	return c.JSON(h.persona.SuggestionList())
}

// Stats returns record counts from the vector index.
func (h *MetaHandler) Stats(c fiber.Ctx) error {
	stats, err := h.docs.Stats(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(stats)
}
