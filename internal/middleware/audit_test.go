package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

type chanWriter chan domain.AuditLog

func (w chanWriter) WriteAudit(e domain.AuditLog) error {
	w <- e
	return nil
}

func TestAuditMiddleware(t *testing.T) {
	entries := make(chanWriter, 1)
	app := fiber.New()
	app.Delete("/documents", AuditMiddleware(entries, domain.AuditActionDelete), func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Document not found"})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/documents?source=s&fileName=f", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	select {
	case e := <-entries:
		assert.Equal(t, domain.AuditActionDelete, e.Action)
		assert.Equal(t, http.MethodDelete, e.Method)
		assert.Equal(t, "/documents", e.Path)
		assert.Equal(t, http.StatusNotFound, e.Status)
		assert.Contains(t, e.Details, "fileName=f")
		assert.Contains(t, e.Details, `"subject":"anonymous"`)
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry not written")
	}
}
