package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer mints the short-lived HS256 tokens presented to the render target in
// the x-encrypted-auth header. The source claim identifies this service to the
// page; the token never travels as a cookie or query parameter.
type Signer struct {
	secret []byte
	source string
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer. A nil clock defaults to time.Now.
func NewSigner(secret, source string, ttl time.Duration, now func() time.Time) *Signer {
	if now == nil {
		now = time.Now
	}
	return &Signer{
		secret: []byte(secret),
		source: source,
		ttl:    ttl,
		now:    now,
	}
}

// Sign returns a signed token carrying the fixed source claim.
func (s *Signer) Sign() (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("auth: empty signing secret")
	}
	issued := s.now()
	claims := jwt.MapClaims{
		"source": s.source,
		"iat":    issued.Unix(),
		"exp":    issued.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token minted by Sign and returns its source claim.
func (s *Signer) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		source, ok := claims["source"].(string)
		if !ok {
			return "", fmt.Errorf("auth: invalid source in token")
		}
		return source, nil
	}

	return "", fmt.Errorf("auth: invalid token")
}
