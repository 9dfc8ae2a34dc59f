package kernel

import "context"

// ============================================================================
// Context Types
// ============================================================================

// AuthSource says how a request's identity was established.
type AuthSource string

const (
	AuthSourceHeader AuthSource = "header" // X-User-ID, trusted as-is
	AuthSourceToken  AuthSource = "token"  // verified bearer token subject
)

// AuthContext is the caller identity attached to every request
type AuthContext struct {
	Identity string     `json:"identity"`
	Scopes   []string   `json:"scopes"`
	Source   AuthSource `json:"source"`
}

// IsValid reports whether an identity is present
func (ac *AuthContext) IsValid() bool {
	return ac != nil && ac.Identity != ""
}

// ============================================================================
// Scope Management Methods
// ============================================================================

// HasScope reports whether the context grants scope. "*" grants everything
// and "group:*" grants every "group:..." scope.
func (ac *AuthContext) HasScope(scope string) bool {
	for _, s := range ac.Scopes {
		if s == scope || s == "*" {
			return true
		}
		if len(s) > 2 && s[len(s)-2:] == ":*" {
			prefix := s[:len(s)-2]
			if len(scope) > len(prefix) && scope[:len(prefix)] == prefix && scope[len(prefix)] == ':' {
				return true
			}
		}
	}
	return false
}

// IsAdmin checks for administrator scopes
func (ac *AuthContext) IsAdmin() bool {
	return ac.HasScope("*") || ac.HasScope("admin:*")
}

// HasAnyScope reports whether any of scopes is granted
func (ac *AuthContext) HasAnyScope(scopes ...string) bool {
	for _, scope := range scopes {
		if ac.HasScope(scope) {
			return true
		}
	}
	return false
}

// ============================================================================
// Context Keys
// ============================================================================

type ContextKey string

const (
	AuthContextKey ContextKey = "auth_context"
	RequestIDKey   ContextKey = "request_id"
)

func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// AuthFrom returns the AuthContext stored in ctx, if any.
func AuthFrom(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return ac, ok && ac != nil
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
