package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/devansh728/BYVS/internal/auth"
)

const (
	LocalsPhone = "phone"
	LocalsRole  = "role"
)

// RequireJWT accepts requests carrying a valid bearer token and stores the
// caller's phone and role in the request locals.
func RequireJWT(tokens *auth.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		claims, err := tokens.Parse(raw)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msg,
			})
		}

		c.Locals(LocalsPhone, claims.Subject)
		c.Locals(LocalsRole, claims.Role)
		return c.Next()
	}
}

// Phone returns the authenticated caller's phone set by RequireJWT.
func Phone(c *fiber.Ctx) string {
	phone, _ := c.Locals(LocalsPhone).(string)
	return phone
}
