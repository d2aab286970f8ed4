package service

import (
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/arturoeanton/portfolio-assistant/internal/middleware"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

// ConfigCheckPassword is a reserved value the admin page sends to learn
// whether the gate is enabled. It never authenticates.
const ConfigCheckPassword = "config-check"

// AuthResult is the outcome of an admin login attempt.
type AuthResult struct {
	// ConfigCheck is set when the request was a config-check request.
	ConfigCheck bool
	// Token is a signed admin token, empty when no token secret is configured.
	Token string
}

// AuthService is the admin password gate. It is a deterrent for casual
// visitors, not an access-control boundary, unless tokens are required.
type AuthService struct {
	password string
	tokenCfg middleware.TokenConfig
}

// NewAuthService creates the gate. An empty password disables it.
func NewAuthService(password string, tokenCfg middleware.TokenConfig) *AuthService {
	return &AuthService{password: password, tokenCfg: tokenCfg}
}

// Enabled reports whether an admin password is configured.
func (s *AuthService) Enabled() bool { return s.password != "" }

// Authenticate checks password against the configured secret.
func (s *AuthService) Authenticate(password string) (*AuthResult, error) {
	if !s.Enabled() {
		return nil, port.ErrAuthDisabled
	}
	if password == ConfigCheckPassword {
		return &AuthResult{ConfigCheck: true}, nil
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) != 1 {
		slog.Warn("admin login failed")
		return nil, port.ErrAuthInvalid
	}

	res := &AuthResult{}
	if s.tokenCfg.Secret != "" {
		tok, err := middleware.GenerateToken("admin", s.tokenCfg)
		if err != nil {
			return nil, fmt.Errorf("generate token: %w", err)
		}
		res.Token = tok
	}
	slog.Info("admin authenticated")
	return res, nil
}
