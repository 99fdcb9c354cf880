package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fedutinova/minedash/internal/common"
)

const audience = "minedash"

// Claims carry the authenticated identity of one browser session.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the identity attached to a request once its token is verified.
type Session struct {
	ID        string
	Username  string
	Role      string
	ExpiresAt time.Time
}

// NewSessionToken signs a token for username/role valid for ttl. The token
// id doubles as the session id used for revocation.
func NewSessionToken(secret, issuer, username, role string, ttl time.Duration) (string, *Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		ExpiresAt: now.Add(ttl),
	}
	cl := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			Audience:  []string{audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, cl)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, sess, nil
}

// ParseSessionToken verifies signature, issuer, audience and expiry.
func ParseSessionToken(secret, issuer, raw string) (*Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	cl := &Claims{}
	if _, err := parser.ParseWithClaims(raw, cl, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidSession, err)
	}
	if cl.ID == "" || cl.Username == "" {
		return nil, fmt.Errorf("%w: missing session id or username", common.ErrInvalidSession)
	}
	return &Session{
		ID:        cl.ID,
		Username:  cl.Username,
		Role:      cl.Role,
		ExpiresAt: cl.ExpiresAt.Time,
	}, nil
}
