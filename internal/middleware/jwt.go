package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/portfolio-assistant/internal/port"
)

const adminLocal = "admin"

// TokenConfig holds admin token settings.
type TokenConfig struct {
	Secret    string
	Issuer    string
	ExpiresIn time.Duration
	// Required turns the guard on. When false, AdminGuard lets every request
	// through and the admin page relies on its client-side flag alone.
	Required bool
}

// Claims represents the token payload.
type Claims struct {
	Subject   string `json:"sub"`
	Issuer    string `json:"iss"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AdminGuard rejects requests without a valid admin bearer token when cfg.Required is set.
func AdminGuard(cfg TokenConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !cfg.Required {
			return c.Next()
		}

		token := bearerToken(c.Get("Authorization"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization",
			})
		}

		claims, err := ValidateToken(token, cfg)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals(adminLocal, claims)
		return c.Next()
	}
}

// AdminClaims returns the claims set by AdminGuard, or nil.
func AdminClaims(c fiber.Ctx) *Claims {
	claims, ok := c.Locals(adminLocal).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// GenerateToken signs an HS256 token for subject.
func GenerateToken(subject string, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("token secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Subject:   subject,
		Issuer:    cfg.Issuer,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(cfg.ExpiresIn).Unix(),
	}

	headerJSON, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)
	return signingInput + "." + signHS256(signingInput, cfg.Secret), nil
}

// ValidateToken checks signature, expiry, and issuer.
func ValidateToken(tokenStr string, cfg TokenConfig) (*Claims, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: format", port.ErrTokenInvalid)
	}

	signingInput := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(signHS256(signingInput, cfg.Secret))) {
		return nil, fmt.Errorf("%w: signature", port.ErrTokenInvalid)
	}

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: encoding", port.ErrTokenInvalid)
	}

	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return nil, fmt.Errorf("%w: claims", port.ErrTokenInvalid)
	}

	if time.Now().Unix() > claims.ExpiresAt {
		return nil, port.ErrTokenExpired
	}
	if claims.Issuer != cfg.Issuer {
		return nil, fmt.Errorf("%w: issuer", port.ErrTokenInvalid)
	}
	return &claims, nil
}

func signHS256(input, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
