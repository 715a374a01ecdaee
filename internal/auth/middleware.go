package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/events"
	apperrors "github.com/spec-kit/ticket-pipeline/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal identifies the caller. It carries no permissions.
type Principal struct {
	Name string
	Type domain.AuthorType
}

// Actor converts the principal for event metadata.
func (p *Principal) Actor() events.Actor {
	return events.Actor{Type: p.Type, Name: p.Name}
}

// AuthMiddleware reads optional bearer tokens.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle identifies the caller. Requests without a token proceed as an
// anonymous customer; a malformed or invalid token is rejected.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		c.Locals(principalKey, &Principal{Type: domain.AuthorTypeCustomer})
		return c.Next()
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{Name: claims.Name, Type: claims.ActorType})
	return c.Next()
}

// PrincipalFromContext retrieves the caller, defaulting to an anonymous customer.
func PrincipalFromContext(c *fiber.Ctx) *Principal {
	if principal, ok := c.Locals(principalKey).(*Principal); ok && principal != nil {
		return principal
	}
	return &Principal{Type: domain.AuthorTypeCustomer}
}
