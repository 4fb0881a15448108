package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherror "github.com/gueripep/brainflash-server/internal/errors"
)

func newTestTokenService() *TokenService {
	return NewTokenService("test-access-secret-123", "test-refresh-secret-456", 60, 10080, 60, 1440)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name           string
		accessSecret   string
		refreshSecret  string
		accessMinutes  int
		refreshMinutes int
		resetMinutes   int
		verifyMinutes  int
	}{
		{
			name:           "valid parameters",
			accessSecret:   "access-secret-key",
			refreshSecret:  "refresh-secret-key",
			accessMinutes:  60,
			refreshMinutes: 10080,
			resetMinutes:   60,
			verifyMinutes:  1440,
		},
		{
			name:           "empty secrets",
			accessSecret:   "",
			refreshSecret:  "",
			accessMinutes:  30,
			refreshMinutes: 2880,
			resetMinutes:   15,
			verifyMinutes:  60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := NewTokenService(tt.accessSecret, tt.refreshSecret,
				tt.accessMinutes, tt.refreshMinutes, tt.resetMinutes, tt.verifyMinutes)

			assert.NotNil(t, ts)
			assert.Equal(t, tt.accessSecret, ts.AccessTokenSecret)
			assert.Equal(t, tt.refreshSecret, ts.RefreshTokenSecret)
			assert.Equal(t, time.Duration(tt.accessMinutes)*time.Minute, ts.AccessTokenExpiry)
			assert.Equal(t, time.Duration(tt.refreshMinutes)*time.Minute, ts.RefreshTokenExpiry)
			assert.Equal(t, time.Duration(tt.resetMinutes)*time.Minute, ts.ResetTokenExpiry)
			assert.Equal(t, time.Duration(tt.verifyMinutes)*time.Minute, ts.VerifyTokenExpiry)
		})
	}
}

func TestTokenService_Generate(t *testing.T) {
	ts := newTestTokenService()

	beforeGenerate := time.Now()
	accessToken, refreshToken, expiryTime, err := ts.Generate("user-123", "test@example.com")
	afterGenerate := time.Now()

	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)
	assert.NotEqual(t, accessToken, refreshToken)

	// Expiry lands within the expected window around now + access TTL.
	assert.True(t, expiryTime.After(beforeGenerate.Add(ts.AccessTokenExpiry).Add(-time.Second)))
	assert.True(t, expiryTime.Before(afterGenerate.Add(ts.AccessTokenExpiry).Add(time.Second)))

	claims, err := ts.VerifyAccessToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, PurposeAccess, claims.Purpose)
	assert.NotEmpty(t, claims.ID)

	refreshClaims, err := ts.VerifyRefreshToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-123", refreshClaims.Subject)
	assert.Equal(t, PurposeRefresh, refreshClaims.Purpose)
}

func TestVerifyAccessToken_Failures(t *testing.T) {
	ts := newTestTokenService()

	accessToken, refreshToken, _, err := ts.Generate("user-123", "test@example.com")
	require.NoError(t, err)

	t.Run("garbage token", func(t *testing.T) {
		_, err := ts.VerifyAccessToken("not-a-jwt")
		assert.ErrorIs(t, err, autherror.ErrTokenInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService("another-secret", "another-refresh", 60, 10080, 60, 1440)
		_, err := other.VerifyAccessToken(accessToken)
		assert.ErrorIs(t, err, autherror.ErrTokenInvalid)
	})

	t.Run("refresh token rejected as access token", func(t *testing.T) {
		_, err := ts.VerifyAccessToken(refreshToken)
		assert.ErrorIs(t, err, autherror.ErrTokenInvalid)
	})

	t.Run("unsigned algorithm rejected", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, JWTCustomClaims{
			Purpose: PurposeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ts.VerifyAccessToken(unsigned)
		assert.ErrorIs(t, err, autherror.ErrTokenInvalid)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, _, err := ts.sign("", "a@b.com", PurposeAccess, ts.AccessTokenSecret, time.Hour)
		require.NoError(t, err)

		_, err = ts.VerifyAccessToken(token)
		assert.ErrorIs(t, err, autherror.ErrTokenInvalid)
	})
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	ts := newTestTokenService()

	token, _, err := ts.sign("user-123", "test@example.com", PurposeAccess, ts.AccessTokenSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ts.VerifyAccessToken(token)
	assert.ErrorIs(t, err, autherror.ErrTokenExpired)
}

func TestResetToken_RoundTrip(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.GenerateResetToken("user-123")
	require.NoError(t, err)

	claims, err := ts.VerifyResetToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, PurposeReset, claims.Purpose)

	// A reset token never doubles as an access token, despite sharing the
	// signing secret.
	_, err = ts.VerifyAccessToken(token)
	assert.ErrorIs(t, err, autherror.ErrTokenInvalid)
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.GenerateVerifyToken("user-123", "test@example.com")
	require.NoError(t, err)

	claims, err := ts.VerifyEmailToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, PurposeVerify, claims.Purpose)

	_, err = ts.VerifyResetToken(token)
	assert.ErrorIs(t, err, autherror.ErrTokenInvalid)
}

func TestGetExpiries(t *testing.T) {
	ts := newTestTokenService()

	assert.Equal(t, 60*time.Minute, ts.GetAccessTokenExpiry())
	assert.Equal(t, 10080*time.Minute, ts.GetRefreshTokenExpiry())
}
