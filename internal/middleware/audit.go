package middleware

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(entry domain.AuditLog) error
}

// LogAuditWriter writes audit records to the structured log.
type LogAuditWriter struct {
	Logger *slog.Logger
}

// WriteAudit implements AuditWriter.
func (w LogAuditWriter) WriteAudit(e domain.AuditLog) error {
	l := w.Logger
	if l == nil {
		l = slog.Default()
	}
	l.Info("audit",
		"action", e.Action,
		"method", e.Method,
		"path", e.Path,
		"status", e.Status,
		"ip", e.IP,
		"details", e.Details,
	)
	return nil
}

// AuditMiddleware records every request it wraps as action. Mount it on admin
// mutation routes only.
func AuditMiddleware(writer AuditWriter, action string) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses context objects; capture before the handler runs.
		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")
		query := string(c.Request().URI().QueryString())

		err := c.Next()

		subject := "anonymous"
		if claims := AdminClaims(c); claims != nil {
			subject = claims.Subject
		}

		details, _ := json.Marshal(map[string]any{
			"subject":     subject,
			"query":       query,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		entry := domain.AuditLog{
			Action:    action,
			Method:    method,
			Path:      path,
			Status:    c.Response().StatusCode(),
			Details:   string(details),
			IP:        ip,
			UserAgent: userAgent,
			CreatedAt: start.UTC(),
		}

		// All values are captured; safe to use in the goroutine.
		go func() {
			if writeErr := writer.WriteAudit(entry); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}
