package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const walletIDLocal = "wallet_id"

// TokenValidator resolves a bearer token to the wallet it acts as.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// JWTAuth returns a middleware that validates bearer tokens and stores the
// acting wallet id in the request locals.
func JWTAuth(tokens TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		walletID, err := tokens.Validate(strings.TrimSpace(authz[len("Bearer "):]))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(walletIDLocal, walletID)
		return c.Next()
	}
}

// WalletID returns the acting wallet id set by JWTAuth, or "".
func WalletID(c *fiber.Ctx) string {
	id, _ := c.Locals(walletIDLocal).(string)
	return id
}
