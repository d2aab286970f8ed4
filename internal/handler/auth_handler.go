package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/middleware"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
)

// AuthHandler serves the admin password gate.
type AuthHandler struct {
	auth  *service.AuthService
	audit middleware.AuditWriter
}

// NewAuthHandler creates a new auth handler. audit may be nil.
func NewAuthHandler(auth *service.AuthService, audit middleware.AuditWriter) *AuthHandler {
	return &AuthHandler{auth: auth, audit: audit}
}

// Register sets up auth routes.
func (h *AuthHandler) Register(router fiber.Router) {
	if h.audit != nil {
		router.Post("/admin/auth", middleware.AuditMiddleware(h.audit, domain.AuditActionAdminLogin), h.Login)
		return
	}
	router.Post("/admin/auth", h.Login)
}

// Login checks {password}. It answers 503 when the gate is disabled and 401 on
// a wrong password. A config-check request gets {configured: true}.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return writeError(c, port.Validationf("Invalid request format"))
	}

	res, err := h.auth.Authenticate(body.Password)
	switch {
	case errors.Is(err, port.ErrAuthDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Admin panel is disabled. Set ADMIN_PASSWORD to enable it.",
		})
	case errors.Is(err, port.ErrAuthInvalid):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid password"})
	case err != nil:
		return writeError(c, err)
	}

	if res.ConfigCheck {
		return c.JSON(fiber.Map{"configured": true})
	}
	out := fiber.Map{"success": true}
	if res.Token != "" {
		out["token"] = res.Token
	}
	return c.JSON(out)
}
