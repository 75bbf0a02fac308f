// Package auth holds the password hasher and the signed identity token used by
// the admin API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// DefaultTokenTTL is the fixed validity window of an issued token.
const DefaultTokenTTL = 2 * time.Hour

var (
	ErrMissingSecret    = errors.New("token signing secret is not configured")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrMalformedToken   = errors.New("token is malformed")
)

// Identity is the subject carried by a verified token.
type Identity struct {
	SubjectID   string
	DisplayName string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type tokenClaims struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
	jwt.StandardClaims

	now func() time.Time
}

// Valid checks the time window against the manager's clock instead of the
// package-level jwt.TimeFunc.
func (c *tokenClaims) Valid() error {
	now := c.now().Unix()
	if c.UID == "" {
		return &jwt.ValidationError{Errors: jwt.ValidationErrorClaimsInvalid}
	}
	if c.ExpiresAt == 0 || !c.VerifyExpiresAt(now, true) {
		return &jwt.ValidationError{Errors: jwt.ValidationErrorExpired}
	}
	return nil
}

// TokenManager issues and verifies HS256 tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager fails when secret is empty so a misconfigured server never
// issues tokens.
func NewTokenManager(secret string, ttl time.Duration, now func() time.Time) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: now}, nil
}

// TTL returns the validity window of issued tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs a token for the subject valid for exactly the configured TTL.
func (m *TokenManager) Issue(subjectID, displayName string) (string, error) {
	issued := m.now()
	claims := &tokenClaims{
		UID:  subjectID,
		Name: displayName,
		StandardClaims: jwt.StandardClaims{
			Subject:   subjectID,
			IssuedAt:  issued.Unix(),
			ExpiresAt: issued.Add(m.ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates token, returning ErrExpiredToken,
// ErrInvalidSignature or ErrMalformedToken on failure.
func (m *TokenManager) Verify(token string) (*Identity, error) {
	claims := &tokenClaims{now: m.now}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, ErrMalformedToken
	}
	return &Identity{
		SubjectID:   claims.UID,
		DisplayName: claims.Name,
		IssuedAt:    time.Unix(claims.IssuedAt, 0),
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0),
	}, nil
}

func classify(err error) error {
	var vErr *jwt.ValidationError
	if !errors.As(err, &vErr) {
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	switch {
	case vErr.Errors&jwt.ValidationErrorMalformed != 0:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case vErr.Errors&(jwt.ValidationErrorSignatureInvalid|jwt.ValidationErrorUnverifiable) != 0:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case vErr.Errors&jwt.ValidationErrorExpired != 0:
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
