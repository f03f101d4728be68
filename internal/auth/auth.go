// Package auth verifies HS256 bearer tokens on incoming HTTP requests.
//
// A [Verifier] checks the Authorization header, the token signature and
// expiry, and optionally that the "role" claim equals a required role.
// Verified claims are stored in the request context (see [FromContext]).
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrWong99/scrivener/internal/observe"
)

// Verification failures returned by [Verifier.Verify].
var (
	ErrMissingHeader    = errors.New("auth: missing or invalid authorization header")
	ErrTokenExpired     = errors.New("auth: token expired")
	ErrInvalidToken     = errors.New("auth: invalid token")
	ErrInsufficientRole = errors.New("auth: insufficient role")
)

// Response returns the HTTP status and client-facing detail for a
// verification error.
func Response(err error) (status int, detail string) {
	switch {
	case errors.Is(err, ErrInsufficientRole):
		return http.StatusForbidden, "Insufficient role"
	case errors.Is(err, ErrMissingHeader):
		return http.StatusUnauthorized, "Missing or invalid Authorization header"
	case errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired"
	default:
		return http.StatusUnauthorized, "Invalid token"
	}
}

// Claims are the token claims Scrivener understands.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// Verifier validates bearer tokens. It is safe for concurrent use.
type Verifier struct {
	secret       []byte
	requiredRole string
	parser       *jwt.Parser
}

// Option configures a [Verifier].
type Option func(*Verifier)

// WithRequiredRole rejects tokens whose role claim differs from role.
func WithRequiredRole(role string) Option {
	return func(v *Verifier) { v.requiredRole = role }
}

// WithParserOptions appends jwt parser options, e.g. [jwt.WithTimeFunc] in tests.
func WithParserOptions(opts ...jwt.ParserOption) Option {
	return func(v *Verifier) {
		all := append([]jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}, opts...)
		v.parser = jwt.NewParser(all...)
	}
}

// NewVerifier returns a Verifier for tokens signed with secret.
func NewVerifier(secret string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: secret must not be empty")
	}
	v := &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
	for _, o := range opts {
		o(v)
	}
	return v, nil
}

// Verify checks an Authorization header value and returns its claims.
// Errors wrap one of the package sentinels.
func (v *Verifier) Verify(header string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, ErrMissingHeader
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if v.requiredRole != "" && claims.Role != v.requiredRole {
		return claims, ErrInsufficientRole
	}
	return claims, nil
}

// Middleware rejects unauthenticated requests with a JSON {"detail": ...}
// body and passes the rest on with their claims in the context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := observe.Logger(r.Context())

		claims, err := v.Verify(r.Header.Get("Authorization"))
		if err != nil {
			status, detail := Response(err)
			if errors.Is(err, ErrInsufficientRole) {
				log.Warn("role check failed", "role", claims.Role, "required_role", v.requiredRole, "path", r.URL.Path)
			} else {
				log.Warn("authentication failed", "err", err, "path", r.URL.Path)
			}
			if status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Bearer realm="scrivener"`)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
			return
		}

		log.Debug("token validated", "subject", claims.Subject, "role", claims.Role)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), claims)))
	})
}

type claimsKey struct{}

// NewContext returns a copy of ctx carrying c.
func NewContext(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// FromContext returns the claims stored by [Verifier.Middleware].
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}
