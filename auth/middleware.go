package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	UserIDKey   = "user_id"
	UsernameKey = "username"
)

// Middleware validates the bearer token of every request it guards and stores
// the caller identity in the fiber locals. Websocket upgrades may carry the
// token in the access_token query parameter instead.
func Middleware(tokens TokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("access_token")
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "authorization token is missing")
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		c.Locals(UserIDKey, claims.UserID)
		c.Locals(UsernameKey, claims.Username)
		return c.Next()
	}
}

// Username returns the authenticated caller, empty when the route is public.
func Username(c *fiber.Ctx) string {
	username, _ := c.Locals(UsernameKey).(string)
	return username
}
