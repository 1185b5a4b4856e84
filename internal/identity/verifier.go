// Package identity connects the storefront to the hosted identity provider.
// It verifies provider tokens, keeps the signed-in account on the session and
// resolves each request to an rbac.Subject.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrSecretRequired is returned when the verifier has no signing secret.
	ErrSecretRequired = errors.New("identity: signing secret required")
)

// Claims are the provider token claims the storefront relies on.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type claimRules struct {
	Subject string `validate:"required,max=128"`
	Email   string `validate:"required,email"`
	Role    string `validate:"omitempty,max=64"`
}

// Verifier checks HS256 tokens minted by the identity provider.
type Verifier struct {
	secret   []byte
	issuer   string
	leeway   time.Duration
	now      func() time.Time
	validate *validator.Validate
}

// NewVerifier constructs a Verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Verifier{
		secret:   []byte(secret),
		issuer:   issuer,
		leeway:   30 * time.Second,
		now:      time.Now,
		validate: validator.New(),
	}, nil
}

// Verify parses the token and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if err := v.validate.Struct(claimRules{Subject: claims.Subject, Email: claims.Email, Role: claims.Role}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
