// Package auth verifies bearer tokens and extracts the caller principal.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   string // admin, driver, customer
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// Verifier validates tokens. Modes:
//   - dev:  token is "userId:role", no cryptography (local development only)
//   - hmac: HS256 JWT with "sub" and "role" claims
type Verifier struct {
	Mode   string
	secret []byte
}

var ErrInvalidToken = errors.New("invalid token")

func NewVerifier(mode, hmacSecret string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, secret: []byte(hmacSecret)}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case "dev":
		parts := strings.SplitN(token, ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			return Principal{}, ErrInvalidToken
		}
		return Principal{UserID: parts[0], Role: parts[1]}, nil
	case "hmac":
		var cl claims
		_, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return v.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if cl.Subject == "" {
			return Principal{}, ErrInvalidToken
		}
		return Principal{UserID: cl.Subject, Role: cl.Role}, nil
	default:
		return Principal{}, fmt.Errorf("unknown auth mode %q", v.Mode)
	}
}

// Sign issues an HS256 token for p. Used by dev tooling and tests; hmac mode
// only.
func (v *Verifier) Sign(p Principal, ttl time.Duration) (string, error) {
	if v.Mode != "hmac" {
		return "", fmt.Errorf("sign requires hmac mode, have %q", v.Mode)
	}
	now := time.Now()
	cl := claims{
		Role: p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(v.secret)
}
