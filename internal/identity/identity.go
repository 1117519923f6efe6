// Package identity resolves the caller's email identity from a signed bearer
// token and attaches the admin capability from the configured role list.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/text/cases"
)

var (
	// ErrUnauthenticated is returned when a request carries no credentials.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid token")
)

// Principal is the resolved caller.
type Principal struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// NormalizeEmail trims and case-folds an email so it can be used as a key.
func NormalizeEmail(email string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(email))
}

// Verifier checks HMAC-signed JWTs issued by the identity provider.
type Verifier struct {
	secret     []byte
	emailClaim string
}

// NewVerifier creates a verifier that reads the identity from emailClaim.
func NewVerifier(secret, emailClaim string) *Verifier {
	if emailClaim == "" {
		emailClaim = "email"
	}
	return &Verifier{secret: []byte(secret), emailClaim: emailClaim}
}

// Verify validates the token and returns the normalized email it carries.
func (v *Verifier) Verify(token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	raw, ok := claims[v.emailClaim].(string)
	email := NormalizeEmail(raw)
	if !ok || email == "" {
		return "", fmt.Errorf("%w: missing %q claim", ErrInvalidToken, v.emailClaim)
	}
	return email, nil
}

// Issue signs a token for email. Used by tests and local tooling.
func (v *Verifier) Issue(email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		v.emailClaim: email,
		"iat":        jwt.NewNumericDate(now),
		"exp":        jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Roles maps identities to capabilities.
type Roles struct {
	admins map[string]bool
}

// NewRoles grants the admin capability to each listed email.
func NewRoles(adminEmails []string) *Roles {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		if e = NormalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	return &Roles{admins: admins}
}

// IsAdmin reports whether email holds the admin capability.
func (r *Roles) IsAdmin(email string) bool {
	return r.admins[NormalizeEmail(email)]
}

// Resolver turns requests into principals.
type Resolver struct {
	verifier *Verifier
	roles    *Roles
}

// NewResolver creates a resolver.
func NewResolver(v *Verifier, r *Roles) *Resolver {
	return &Resolver{verifier: v, roles: r}
}

// Resolve reads the bearer token of req.
func (r *Resolver) Resolve(req *http.Request) (Principal, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return Principal{}, ErrUnauthenticated
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Principal{}, ErrUnauthenticated
	}

	email, err := r.verifier.Verify(strings.TrimSpace(token))
	if err != nil {
		return Principal{}, err
	}
	return Principal{Email: email, IsAdmin: r.roles.IsAdmin(email)}, nil
}
