package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token roles
const (
	RoleOverlay = "overlay" // may subscribe to translations
	RoleControl = "control" // may also change bridge state
)

const defaultTokenTTL = 24 * time.Hour

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// CanControl reports whether the token may change bridge state
func (c *JWTClaims) CanControl() bool {
	return c.Role == RoleControl
}

// TokenIssuer signs and validates HS256 tokens with a shared secret
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer. A zero ttl selects 24 hours.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns how long issued tokens stay valid
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// GenerateOverlayToken generates a token for a display-only overlay client
func (i *TokenIssuer) GenerateOverlayToken(clientID string) (string, error) {
	return i.generate(clientID, RoleOverlay)
}

// GenerateControlToken generates a token that may also toggle translation,
// re-trigger and reset the connection
func (i *TokenIssuer) GenerateControlToken(clientID string) (string, error) {
	return i.generate(clientID, RoleControl)
}

func (i *TokenIssuer) generate(clientID, role string) (string, error) {
	if clientID == "" {
		return "", errors.New("client ID is required")
	}

	now := i.now()
	claims := &JWTClaims{
		ClientID: clientID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// ValidateToken validates a JWT token and returns the claims
func (i *TokenIssuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.Role != RoleOverlay && claims.Role != RoleControl {
			return nil, errors.New("unknown token role")
		}
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
