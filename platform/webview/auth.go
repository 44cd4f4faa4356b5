package webview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/parley/platform"
)

// Identity is an authenticated client.
type Identity struct {
	Subject string   `json:"subject"`
	Scopes  []string `json:"scopes,omitempty"`
}

// HasScope reports whether the identity holds scope. "*" grants
// everything.
func (i *Identity) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// Scopes checked by the server.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAll   = "*"
)

// DefaultScopes are granted to token holders whose credential names none.
var DefaultScopes = []string{ScopeRead, ScopeWrite}

// RequiredScope returns the scope a request method needs.
func RequiredScope(method string) string {
	switch method {
	case MethodAuth:
		return ""
	case MethodSubscribe, MethodUnsubscribe:
		return ScopeRead
	case MethodMessage, MethodCallback:
		return ScopeWrite
	default:
		return ScopeAll
	}
}

// Authenticator validates the token of an auth frame.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// ErrUnauthorized is returned by authenticators for rejected tokens.
var ErrUnauthorized = fmt.Errorf("webview: %w", platform.ErrUnauthorized)

// ── API keys ────────────────────────────────────────

// APIKey maps a static token to an identity.
type APIKey struct {
	Token    string
	Identity Identity
}

// APIKeyAuthenticator accepts a fixed set of tokens.
type APIKeyAuthenticator struct {
	keys map[string]Identity
}

// NewAPIKeyAuthenticator returns an authenticator for keys. Keys without
// scopes get DefaultScopes.
func NewAPIKeyAuthenticator(keys ...APIKey) *APIKeyAuthenticator {
	m := make(map[string]Identity, len(keys))
	for _, k := range keys {
		ident := k.Identity
		if len(ident.Scopes) == 0 {
			ident.Scopes = DefaultScopes
		}
		m[k.Token] = ident
	}
	return &APIKeyAuthenticator{keys: m}
}

func (a *APIKeyAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	for candidate, ident := range a.keys {
		if platform.EqualToken(candidate, token) {
			return &ident, nil
		}
	}
	return nil, ErrUnauthorized
}

// ── JWT ─────────────────────────────────────────────

// Claims are the JWT claims understood by JWTAuthenticator. Scope is a
// space separated list.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator accepts HMAC-signed JWTs carrying a subject and an
// expiry.
type JWTAuthenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator returns an authenticator for tokens signed with
// secret. A non-empty issuer must match the iss claim.
func NewJWTAuthenticator(secret []byte, issuer string) *JWTAuthenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name, jwt.SigningMethodHS384.Name, jwt.SigningMethodHS512.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWTAuthenticator{secret: secret, parser: jwt.NewParser(opts...)}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (*Identity, error) {
	var claims Claims
	_, err := a.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	ident := &Identity{Subject: claims.Subject, Scopes: strings.Fields(claims.Scope)}
	if len(ident.Scopes) == 0 {
		ident.Scopes = DefaultScopes
	}
	return ident, nil
}

// SignToken issues an HS256 token for subject valid for ttl.
func SignToken(secret []byte, issuer, subject string, scopes []string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("webview: token subject is required")
	}
	now := time.Now()
	claims := Claims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ── Composition ─────────────────────────────────────

// CompositeAuthenticator tries each authenticator in order.
type CompositeAuthenticator []Authenticator

func (c CompositeAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	for _, a := range c {
		if ident, err := a.Authenticate(ctx, token); err == nil {
			return ident, nil
		}
	}
	return nil, ErrUnauthorized
}

// NoopAuthenticator accepts every token with a wildcard identity. For
// development only.
type NoopAuthenticator struct{}

func (NoopAuthenticator) Authenticate(_ context.Context, _ string) (*Identity, error) {
	return &Identity{Subject: "anonymous", Scopes: []string{ScopeAll}}, nil
}
