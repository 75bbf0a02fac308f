package middleware

import (
	"strings"

	"minimarket/internal/apperrors"
	"minimarket/internal/auth"
	"minimarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// Authenticator verifies a raw token.
type Authenticator interface {
	Authenticate(token string) (*auth.Identity, error)
}

// AuthRequired is a Fiber middleware that rejects requests without a valid
// token in header. The verified identity is stored on the request.
func AuthRequired(authenticator Authenticator, header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Get(header))
		if token == "" {
			return apperrors.New(apperrors.KindUnauthenticated, "no token in request")
		}

		identity, err := authenticator.Authenticate(token)
		if err != nil {
			return apperrors.Wrap(apperrors.KindUnauthenticated, "invalid or expired token", err)
		}

		c.Locals(identityKey, identity)
		c.SetUserContext(services.WithActor(c.UserContext(), identity.SubjectID))
		return c.Next()
	}
}

// IdentityFrom returns the identity attached by AuthRequired, or nil.
func IdentityFrom(c *fiber.Ctx) *auth.Identity {
	identity, _ := c.Locals(identityKey).(*auth.Identity)
	return identity
}
