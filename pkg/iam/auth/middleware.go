package auth

import (
	"strings"

	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/Abraxas-365/chatkeep/pkg/iam"
	"github.com/Abraxas-365/chatkeep/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

const localsKey = "auth"

// IdentityMiddleware resolves the caller identity for every request.
type IdentityMiddleware struct {
	tokenService TokenService
	audit        AuditService
}

// NewIdentityMiddleware creates the middleware. A nil tokenService trusts the
// X-User-ID header; otherwise a bearer token is required.
func NewIdentityMiddleware(tokenService TokenService, audit AuditService) *IdentityMiddleware {
	return &IdentityMiddleware{tokenService: tokenService, audit: audit}
}

// TokensRequired reports whether bearer tokens are enforced.
func (m *IdentityMiddleware) TokensRequired() bool { return m.tokenService != nil }

// Authenticate attaches a *kernel.AuthContext to the request.
func (m *IdentityMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.tokenService == nil {
			identity := strings.TrimSpace(c.Get(iam.HeaderUserID))
			if identity == "" {
				return iam.ErrMissingIdentity()
			}
			return m.next(c, &kernel.AuthContext{Identity: identity, Source: kernel.AuthSourceHeader})
		}

		token := bearerToken(c.Get(iam.HeaderAuthorization))
		if token == "" {
			token = c.Cookies("access_token")
		}
		if token == "" {
			m.fail(c, "missing token")
			return iam.ErrUnauthorized()
		}

		claims, err := m.tokenService.ValidateAccessToken(token)
		if err != nil {
			m.fail(c, "invalid token")
			return errx.Wrap(err, "invalid bearer token", errx.TypeAuthorization)
		}

		return m.next(c, &kernel.AuthContext{
			Identity: claims.Subject,
			Scopes:   claims.Scopes,
			Source:   kernel.AuthSourceToken,
		})
	}
}

// RequireAdmin rejects callers without an admin scope. It is a no-op when
// tokens are not in use, since header identities carry no scopes.
func (m *IdentityMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.tokenService == nil {
			return c.Next()
		}
		ac, ok := FromFiber(c)
		if !ok {
			return iam.ErrUnauthorized()
		}
		if !ac.IsAdmin() {
			return iam.ErrAccessDenied()
		}
		return c.Next()
	}
}

func (m *IdentityMiddleware) next(c *fiber.Ctx, ac *kernel.AuthContext) error {
	c.Locals(localsKey, ac)
	c.SetUserContext(kernel.WithAuth(c.UserContext(), ac))
	return c.Next()
}

func (m *IdentityMiddleware) fail(c *fiber.Ctx, reason string) {
	if m.audit != nil {
		m.audit.LogAuthFailure(c.UserContext(), reason, c.IP(), c.Get(fiber.HeaderUserAgent))
	}
}

// FromFiber returns the identity attached by Authenticate.
func FromFiber(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ac, ok := c.Locals(localsKey).(*kernel.AuthContext)
	return ac, ok && ac.IsValid()
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
