package handler

import (
	"fmt"
	"io"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/middleware"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
)

// DocumentHandler serves the admin document endpoints.
type DocumentHandler struct {
	docs     *service.DocumentService
	guard    fiber.Handler
	audit    middleware.AuditWriter
	maxBytes int64
}

// NewDocumentHandler creates a document handler. guard protects mutations;
// audit may be nil.
func NewDocumentHandler(docs *service.DocumentService, guard fiber.Handler, audit middleware.AuditWriter, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{docs: docs, guard: guard, audit: audit, maxBytes: maxBytes}
}

// Register sets up document routes.
func (h *DocumentHandler) Register(router fiber.Router) {
	router.Get("/documents", h.List)
	router.Post("/documents", h.guard, h.audited(domain.AuditActionUpload), h.Upload)
	router.Delete("/documents", h.guard, h.audited(domain.AuditActionDelete), h.Delete)
}

func (h *DocumentHandler) audited(action string) fiber.Handler {
	if h.audit == nil {
		return func(c fiber.Ctx) error { return c.Next() }
	}
	return middleware.AuditMiddleware(h.audit, action)
}

// Upload indexes a multipart file (fields: file, source).
func (h *DocumentHandler) Upload(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, port.Validationf("No file provided"))
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return writeError(c, port.Validationf("File too large. Maximum size is %d MB", h.maxBytes>>20))
	}

	f, err := fh.Open()
	if err != nil {
		return writeError(c, fmt.Errorf("open upload: %w", err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return writeError(c, fmt.Errorf("read upload: %w", err))
	}

	res, err := h.docs.Upload(c.Context(), domain.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, c.FormValue("source"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"chunksProcessed": res.ChunksProcessed,
		"fileName":        res.FileName,
		"source":          res.Source,
	})
}

// List returns one summary per indexed document.
func (h *DocumentHandler) List(c fiber.Ctx) error {
	docs, err := h.docs.List(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"documents": docs})
}

// Delete removes one document (?source=&fileName=) or everything (?deleteAll=true).
func (h *DocumentHandler) Delete(c fiber.Ctx) error {
	if c.Query("deleteAll") == "true" {
		if err := h.docs.DeleteAll(c.Context()); err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "action": "deleteAll"})
	}

	n, err := h.docs.Delete(c.Context(), c.Query("source"), c.Query("fileName"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "deletedChunks": n})
}
