package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/taskflow/internal/models"
)

var (
	testAccessSecret  = []byte(strings.Repeat("a", MinSecretLength))
	testRefreshSecret = []byte(strings.Repeat("r", MinSecretLength))
)

func newTestCodec(t *testing.T) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(TokenConfig{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret})
	require.NoError(t, err)
	return codec
}

func testIdentity() Identity {
	return Identity{UserID: uuid.Must(uuid.NewV7()), Email: "alice@example.com"}
}

func TestNewTokenCodec(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		_, err := NewTokenCodec(TokenConfig{AccessSecret: []byte("short"), RefreshSecret: testRefreshSecret})
		require.ErrorIs(t, err, ErrWeakSecret)
	})

	t.Run("shared secret", func(t *testing.T) {
		_, err := NewTokenCodec(TokenConfig{AccessSecret: testAccessSecret, RefreshSecret: testAccessSecret})
		require.ErrorIs(t, err, ErrSharedSecrets)
	})
}

func TestAccessToken(t *testing.T) {
	codec := newTestCodec(t)
	identity := testIdentity()
	orgID := uuid.Must(uuid.NewV7())

	t.Run("round trip", func(t *testing.T) {
		token, err := codec.IssueAccess(identity, orgID, models.RoleAdmin, 0)
		require.NoError(t, err)

		claims, err := codec.Verify(token)
		require.NoError(t, err)
		require.Equal(t, TokenTypeAccess, claims.TokenType)
		require.Equal(t, identity.Email, claims.Email)
		require.Equal(t, models.RoleAdmin, claims.Role)

		userID, err := claims.UserID()
		require.NoError(t, err)
		require.Equal(t, identity.UserID, userID)

		gotOrg, err := claims.Org()
		require.NoError(t, err)
		require.Equal(t, orgID, gotOrg)

		require.WithinDuration(t, time.Now().Add(DefaultAccessTTL), claims.ExpiresAt.Time, 5*time.Second)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := codec.IssueAccess(identity, orgID, models.RoleMember, time.Minute)
		require.NoError(t, err)

		later := newTestCodec(t)
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

		_, err = later.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		token, err := codec.IssueRefresh(identity, 0)
		require.NoError(t, err)

		_, err = codec.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("tampered", func(t *testing.T) {
		token, err := codec.IssueAccess(identity, orgID, models.RoleOwner, 0)
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		parts[2] = strings.Repeat("A", len(parts[2]))

		_, err = codec.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong algorithm", func(t *testing.T) {
		claims := codec.claims(TokenTypeAccess, identity, time.Minute)
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testAccessSecret)
		require.NoError(t, err)

		_, err = codec.Verify(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("no organization", func(t *testing.T) {
		token, err := codec.IssueAccess(identity, uuid.Nil, "", 0)
		require.NoError(t, err)

		claims, err := codec.Verify(token)
		require.NoError(t, err)

		gotOrg, err := claims.Org()
		require.NoError(t, err)
		require.Equal(t, uuid.Nil, gotOrg)
	})
}

func TestRefreshToken(t *testing.T) {
	codec := newTestCodec(t)
	identity := testIdentity()

	t.Run("round trip carries identity only", func(t *testing.T) {
		token, err := codec.IssueRefresh(identity, 0)
		require.NoError(t, err)

		claims, err := codec.VerifyRefresh(token)
		require.NoError(t, err)
		require.Equal(t, TokenTypeRefresh, claims.TokenType)
		require.Empty(t, claims.OrgID)
		require.Empty(t, claims.Role)
		require.WithinDuration(t, time.Now().Add(DefaultRefreshTTL), claims.ExpiresAt.Time, 5*time.Second)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		token, err := codec.IssueAccess(identity, uuid.Must(uuid.NewV7()), models.RoleMember, 0)
		require.NoError(t, err)

		_, err = codec.VerifyRefresh(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := codec.IssueRefresh(identity, time.Hour)
		require.NoError(t, err)

		later := newTestCodec(t)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

		_, err = later.VerifyRefresh(token)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
}
