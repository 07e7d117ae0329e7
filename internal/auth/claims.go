// Package auth validates bearer tokens and carries the caller's identity on the request context.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"example.com/officereport/internal/domain"
)

// Config holds signer verification parameters.
type Config struct {
	Secret string
	Issuer string
}

// Claims represents the payload extracted from a JWT.
type Claims struct {
	Subject   string
	Office    string
	Admin     bool
	ExpiresAt time.Time
}

// ErrMissingToken is returned when the Authorization header is absent.
var ErrMissingToken = errors.New("missing bearer token")

// ErrInvalidToken wraps parsing/validation errors.
var ErrInvalidToken = errors.New("invalid bearer token")

// Identity converts the claims into the identity threaded through the domain layer.
func (c *Claims) Identity() domain.Identity {
	if c == nil {
		return domain.Identity{}
	}
	return domain.Identity{Office: c.Office, Admin: c.Admin}
}

// Parse validates a JWT and returns normalized claims. A token must name an
// office unless it belongs to an administrator.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	office, _ := claims["office"].(string)
	admin, _ := claims["admin"].(bool)
	office = strings.TrimSpace(office)
	if subject == "" || (office == "" && !admin) {
		return nil, ErrInvalidToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return &Claims{
		Subject:   subject,
		Office:    office,
		Admin:     admin,
		ExpiresAt: exp.Time,
	}, nil
}

// Issue signs claims with HS256. Token issuance belongs to an external
// identity provider; this exists for tooling and tests.
func Issue(claims Claims, cfg Config) (string, error) {
	mc := jwt.MapClaims{
		"sub": claims.Subject,
		"iss": cfg.Issuer,
		"exp": jwt.NewNumericDate(claims.ExpiresAt),
	}
	if claims.Office != "" {
		mc["office"] = claims.Office
	}
	if claims.Admin {
		mc["admin"] = true
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString([]byte(cfg.Secret))
}
