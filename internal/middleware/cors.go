package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
)

// CORS allows cross-origin requests, preflights included, only from origins.
// An empty list is an error: fiber's cors would otherwise allow every origin.
func CORS(origins []string) (fiber.Handler, error) {
	if len(origins) == 0 {
		return nil, errors.New("cors: no allowed origins configured")
	}
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}), nil
}
