package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/gueripep/brainflash-server/internal/auth/service TokenGenerator

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	autherror "github.com/gueripep/brainflash-server/internal/errors"
)

// TokenPurpose discriminates what a signed token may be used for. A token
// minted for one purpose never verifies under another.
type TokenPurpose string

const (
	PurposeAccess  TokenPurpose = "access"
	PurposeRefresh TokenPurpose = "refresh"
	PurposeReset   TokenPurpose = "password-reset"
	PurposeVerify  TokenPurpose = "email-verification"
)

type TokenGenerator interface {
	Generate(userID, email string) (string, string, time.Time, error)
	VerifyAccessToken(tokenString string) (*JWTCustomClaims, error)
	VerifyRefreshToken(tokenString string) (*JWTCustomClaims, error)
	GenerateResetToken(userID string) (string, error)
	VerifyResetToken(tokenString string) (*JWTCustomClaims, error)
	GenerateVerifyToken(userID, email string) (string, error)
	VerifyEmailToken(tokenString string) (*JWTCustomClaims, error)
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type TokenService struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	ResetTokenExpiry   time.Duration
	VerifyTokenExpiry  time.Duration
}

type JWTCustomClaims struct {
	jwt.RegisteredClaims
	Email   string       `json:"email,omitempty"`
	Purpose TokenPurpose `json:"purpose"`
}

func NewTokenService(accessSecret, refreshSecret string, accessMinutes, refreshMinutes, resetMinutes, verifyMinutes int) *TokenService {
	return &TokenService{
		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		AccessTokenExpiry:  time.Duration(accessMinutes) * time.Minute,
		RefreshTokenExpiry: time.Duration(refreshMinutes) * time.Minute,
		ResetTokenExpiry:   time.Duration(resetMinutes) * time.Minute,
		VerifyTokenExpiry:  time.Duration(verifyMinutes) * time.Minute,
	}
}

func (ts *TokenService) sign(userID, email string, purpose TokenPurpose, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := JWTCustomClaims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Generate mints an access/refresh token pair for the given user. The
// returned time is the access token's expiry.
func (ts *TokenService) Generate(userID, email string) (string, string, time.Time, error) {
	accessToken, expiresAt, err := ts.sign(userID, email, PurposeAccess, ts.AccessTokenSecret, ts.AccessTokenExpiry)
	if err != nil {
		return "", "", time.Time{}, err
	}

	refreshToken, _, err := ts.sign(userID, "", PurposeRefresh, ts.RefreshTokenSecret, ts.RefreshTokenExpiry)
	if err != nil {
		return "", "", time.Time{}, err
	}

	return accessToken, refreshToken, expiresAt, nil
}

// GenerateResetToken mints a short-lived password-reset token. It is signed
// with the access secret, so rotating the secret invalidates outstanding
// reset links along with everything else.
func (ts *TokenService) GenerateResetToken(userID string) (string, error) {
	token, _, err := ts.sign(userID, "", PurposeReset, ts.AccessTokenSecret, ts.ResetTokenExpiry)
	return token, err
}

// GenerateVerifyToken mints an email-verification token bound to the address
// being verified.
func (ts *TokenService) GenerateVerifyToken(userID, email string) (string, error) {
	token, _, err := ts.sign(userID, email, PurposeVerify, ts.AccessTokenSecret, ts.VerifyTokenExpiry)
	return token, err
}

func (ts *TokenService) verify(tokenString, secret string, purpose TokenPurpose) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, autherror.ErrTokenExpired
		}
		return nil, autherror.ErrTokenInvalid
	}

	if !token.Valid || claims.Subject == "" || claims.Purpose != purpose {
		return nil, autherror.ErrTokenInvalid
	}

	return claims, nil
}

func (ts *TokenService) VerifyAccessToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.verify(tokenString, ts.AccessTokenSecret, PurposeAccess)
}

func (ts *TokenService) VerifyRefreshToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.verify(tokenString, ts.RefreshTokenSecret, PurposeRefresh)
}

func (ts *TokenService) VerifyResetToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.verify(tokenString, ts.AccessTokenSecret, PurposeReset)
}

func (ts *TokenService) VerifyEmailToken(tokenString string) (*JWTCustomClaims, error) {
	return ts.verify(tokenString, ts.AccessTokenSecret, PurposeVerify)
}

func (ts *TokenService) GetAccessTokenExpiry() time.Duration {
	return ts.AccessTokenExpiry
}

func (ts *TokenService) GetRefreshTokenExpiry() time.Duration {
	return ts.RefreshTokenExpiry
}
