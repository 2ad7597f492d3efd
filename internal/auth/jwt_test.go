// AngelaMos | 2026
// jwt_test.go

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basementlabs/memberd/internal/config"
	"github.com/basementlabs/memberd/internal/core"
)

func newTestJWTManager(t *testing.T, accessExpire time.Duration) *JWTManager {
	t.Helper()

	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(privatePath, publicPath))

	m, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     privatePath,
		PublicKeyPath:      publicPath,
		AccessTokenExpire:  accessExpire,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "memberd-test",
		Audience:           "memberd-test-api",
	})
	require.NoError(t, err)
	return m
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := newTestJWTManager(t, 15*time.Minute)

	signed, err := m.CreateAccessToken(AccessTokenClaims{
		MemberID: "m1",
		Role:     "admin",
	})
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(context.Background(), signed)
	require.NoError(t, err)
	require.Equal(t, "m1", claims.MemberID)
	require.Equal(t, "admin", claims.Role)
}

func TestExpiredAccessTokenIsRejected(t *testing.T) {
	m := newTestJWTManager(t, -time.Minute)

	signed, err := m.CreateAccessToken(AccessTokenClaims{
		MemberID: "m1",
		Role:     "member",
	})
	require.NoError(t, err)

	_, err = m.VerifyAccessToken(context.Background(), signed)
	require.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestGarbageTokenIsRejected(t *testing.T) {
	m := newTestJWTManager(t, 15*time.Minute)

	_, err := m.VerifyAccessToken(context.Background(), "not.a.token")
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestTokenFromForeignKeyIsRejected(t *testing.T) {
	issuer := newTestJWTManager(t, 15*time.Minute)
	verifier := newTestJWTManager(t, 15*time.Minute)

	signed, err := issuer.CreateAccessToken(AccessTokenClaims{
		MemberID: "m1",
		Role:     "member",
	})
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(context.Background(), signed)
	require.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestCreateRefreshToken(t *testing.T) {
	m := newTestJWTManager(t, 15*time.Minute)

	data, err := m.CreateRefreshToken("m1", "")
	require.NoError(t, err)
	require.NotEmpty(t, data.Token)
	require.NotEmpty(t, data.FamilyID)
	require.True(t, data.ExpiresAt.After(time.Now()))

	require.True(t, m.VerifyRefreshTokenHash(data.Token, data.Hash))
	require.False(t, m.VerifyRefreshTokenHash("different-token", data.Hash))

	// Rotation within a family keeps the family id.
	rotated, err := m.CreateRefreshToken("m1", data.FamilyID)
	require.NoError(t, err)
	require.Equal(t, data.FamilyID, rotated.FamilyID)
	require.NotEqual(t, data.Token, rotated.Token)
}
