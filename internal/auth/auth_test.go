package auth_test

import (
	"strings"
	"testing"
	"time"

	"minimarket/internal/auth"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestPasswordHasher_HashIsSaltedAndVerifies(t *testing.T) {
	h := auth.NewPasswordHasher(4)

	first, err := h.Hash("Secret123")
	require.NoError(t, err)
	second, err := h.Hash("Secret123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "same input must produce different digests")
	assert.True(t, h.Verify("Secret123", first))
	assert.True(t, h.Verify("Secret123", second))
	assert.False(t, h.Verify("secret123", first))
}

func TestPasswordHasher_MalformedDigestFails(t *testing.T) {
	h := auth.NewPasswordHasher(4)

	assert.False(t, h.Verify("Secret123", ""))
	assert.False(t, h.Verify("Secret123", "not-a-bcrypt-digest"))
	assert.False(t, h.Verify("Secret123", "$2a$04$short"))
}

func TestNewTokenManager_MissingSecret(t *testing.T) {
	_, err := auth.NewTokenManager("", time.Hour, nil)
	assert.ErrorIs(t, err, auth.ErrMissingSecret)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	m, err := auth.NewTokenManager("test_jwt_secret", auth.DefaultTokenTTL, clock.Now)
	require.NoError(t, err)

	token, err := m.Issue("user-123", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	id, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.SubjectID)
	assert.Equal(t, "alice", id.DisplayName)
	assert.Equal(t, clock.t.Add(2*time.Hour).Unix(), id.ExpiresAt.Unix())
}

func TestTokenManager_ExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issuedAt}
	m, err := auth.NewTokenManager("test_jwt_secret", auth.DefaultTokenTTL, clock.Now)
	require.NoError(t, err)

	token, err := m.Issue("user-123", "alice")
	require.NoError(t, err)

	clock.t = issuedAt.Add(119 * time.Minute)
	_, err = m.Verify(token)
	assert.NoError(t, err)

	clock.t = issuedAt.Add(121 * time.Minute)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestTokenManager_InvalidSignature(t *testing.T) {
	issuer, err := auth.NewTokenManager("other_secret", 0, nil)
	require.NoError(t, err)
	verifier, err := auth.NewTokenManager("test_jwt_secret", 0, nil)
	require.NoError(t, err)

	token, err := issuer.Issue("user-123", "alice")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	m, err := auth.NewTokenManager("test_jwt_secret", 0, nil)
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"uid": "user-123",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)
}

func TestTokenManager_Malformed(t *testing.T) {
	m, err := auth.NewTokenManager("test_jwt_secret", 0, nil)
	require.NoError(t, err)

	for _, token := range []string{"", "invalid.token.string", "abc"} {
		_, err = m.Verify(token)
		assert.ErrorIs(t, err, auth.ErrMalformedToken, token)
	}
}
