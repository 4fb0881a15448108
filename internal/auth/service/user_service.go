package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gueripep/brainflash-server/config"
	"github.com/gueripep/brainflash-server/internal/auth/authz"
	"github.com/gueripep/brainflash-server/internal/auth/domain"
	"github.com/gueripep/brainflash-server/internal/auth/dto"
	"github.com/gueripep/brainflash-server/internal/auth/password"
	autherror "github.com/gueripep/brainflash-server/internal/errors"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const minPasswordLength = 6

type UserService struct {
	repo                   domain.UserRepository
	tokenService           TokenGenerator
	hasher                 password.Hasher
	maxActiveTokensPerUser int
}

func NewUserService(repo domain.UserRepository, tokenService TokenGenerator, hasher password.Hasher, cfg *config.Config) *UserService {
	return &UserService{
		repo:                   repo,
		tokenService:           tokenService,
		hasher:                 hasher,
		maxActiveTokensPerUser: cfg.MaxActiveRefreshTokens,
	}
}

// normalizeEmail lower-cases an address; the store is case-insensitive on
// email, so all writes and lookups go through here.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return autherror.NewValidation("email", "must be a valid email address")
	}
	return nil
}

func validatePassword(plaintext string) error {
	if len(plaintext) < minPasswordLength {
		return autherror.NewValidation("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	return nil
}

// hashToken derives the storage key for a refresh token; raw tokens are
// never persisted.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Register creates a new active, unverified, non-superuser account. The
// duplicate-email race is resolved by the store's unique index; the
// pre-check only gives well-behaved clients a fast answer.
func (s *UserService) Register(ctx context.Context, input dto.RegisterInput) (*domain.User, error) {
	email := normalizeEmail(input.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	existingUser, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existingUser != nil {
		return nil, autherror.ErrEmailAlreadyInUse
	}

	hashedPassword, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	user := &domain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashedPassword,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		IsActive:     true,
		IsSuperuser:  false,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login verifies credentials and issues an access/refresh pair. Unknown
// email, wrong password and deactivated account all surface the same
// ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, input dto.LoginInput) (*dto.TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}

	if user == nil || !s.hasher.Verify(input.Password, user.PasswordHash) || !user.IsActive {
		return nil, autherror.ErrInvalidCredentials
	}

	accessToken, refreshToken, expiresAt, err := s.tokenService.Generate(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	if err := s.storeRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
	}, nil
}

func (s *UserService) storeRefreshToken(ctx context.Context, userID, refreshToken string) error {
	now := time.Now()

	rt := &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: now.Add(s.tokenService.GetRefreshTokenExpiry()),
		CreatedAt: now,
		Revoked:   false,
	}

	if err := s.repo.StoreRefreshToken(ctx, rt); err != nil {
		return err
	}

	activeCount, err := s.repo.GetActiveCountByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if activeCount > s.maxActiveTokensPerUser {
		if err := s.repo.DeleteOldestByUserID(ctx, userID); err != nil {
			log.Printf("warn: failed to delete oldest refresh token for user %s: %v", userID, err)
		}
	}

	return nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued. A revoked or expired token never yields a new pair.
func (s *UserService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.TokenResponse, error) {
	if _, err := s.tokenService.VerifyRefreshToken(input.RefreshToken); err != nil {
		return nil, err
	}

	token, err := s.repo.GetRefreshToken(ctx, hashToken(input.RefreshToken))
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, autherror.ErrRefreshTokenNotFound
	}

	if token.Revoked {
		return nil, autherror.ErrRefreshTokenRevoked
	}

	if time.Now().After(token.ExpiresAt) {
		return nil, autherror.ErrRefreshTokenExpired
	}

	if err := s.repo.RevokeRefreshToken(ctx, token.ID); err != nil {
		return nil, fmt.Errorf("failed to revoke token: %w", err)
	}

	user, err := s.repo.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, autherror.ErrTokenInvalid
	}

	accessToken, newRefreshToken, expiresAt, err := s.tokenService.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new tokens: %w", err)
	}

	if err := s.storeRefreshToken(ctx, user.ID, newRefreshToken); err != nil {
		return nil, fmt.Errorf("failed to store new refresh token: %w", err)
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// Logout revokes the presented refresh token. It is idempotent: an unknown
// or already-revoked token is not an error.
func (s *UserService) Logout(ctx context.Context, input dto.LogoutInput) error {
	if input.RefreshToken == "" {
		return nil
	}

	token, err := s.repo.GetRefreshToken(ctx, hashToken(input.RefreshToken))
	if err != nil {
		return err
	}
	if token == nil || token.Revoked {
		return nil
	}

	return s.repo.RevokeRefreshToken(ctx, token.ID)
}

// AuthenticateToken resolves a bearer access token to its user. Unknown
// subjects are indistinguishable from invalid tokens; deactivated subjects
// are reported as such so the boundary can answer Forbidden.
func (s *UserService) AuthenticateToken(ctx context.Context, tokenString string) (*domain.User, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrTokenInvalid
	}
	if !user.IsActive {
		return nil, autherror.ErrUserDeactivated
	}

	return user, nil
}

// GetUser returns the target profile if actor is the target or a superuser.
// NotFound is only revealed to callers that passed the authorization gate.
func (s *UserService) GetUser(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	if err := authz.Authorize(actor, authz.Self(targetID)); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrUserNotFound
	}

	return user, nil
}

// UpdateUser patches the target profile. Role flags in the input are honored
// only when the actor is a superuser; self-updates silently drop them.
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.User, targetID string, input dto.UpdateUserInput) (*domain.User, error) {
	if err := authz.Authorize(actor, authz.Self(targetID)); err != nil {
		return nil, err
	}

	var patch domain.UserPatch

	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		patch.Email = &email
	}

	if input.Password != nil {
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}
		hashed, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hashed
	}

	patch.FirstName = input.FirstName
	patch.LastName = input.LastName

	if actor.IsSuperuser {
		patch.IsActive = input.IsActive
		patch.IsSuperuser = input.IsSuperuser
		patch.IsVerified = input.IsVerified
	}

	return s.repo.Update(ctx, targetID, patch)
}

// DeleteUser removes the target account. Allowed for the account owner and
// for superusers.
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.User, targetID string) error {
	if err := authz.Authorize(actor, authz.Self(targetID)); err != nil {
		return err
	}

	return s.repo.Delete(ctx, targetID)
}

// RequestPasswordReset mints a reset token for the account if it exists.
// It answers identically for unknown addresses; the token is only logged
// server-side (delivery is handled elsewhere).
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil || user == nil || !user.IsActive {
		return nil
	}

	token, err := s.tokenService.GenerateResetToken(user.ID)
	if err != nil {
		return nil
	}

	log.Printf("user %s has forgotten their password, reset token: %s", user.ID, token)

	return nil
}

// ConfirmPasswordReset verifies a reset token and installs the new password.
func (s *UserService) ConfirmPasswordReset(ctx context.Context, input dto.ResetPasswordInput) error {
	claims, err := s.tokenService.VerifyResetToken(input.Token)
	if err != nil {
		return err
	}

	if err := validatePassword(input.Password); err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return err
	}

	_, err = s.repo.Update(ctx, claims.Subject, domain.UserPatch{PasswordHash: &hashed})
	if errors.Is(err, autherror.ErrUserNotFound) {
		// The account vanished after the token was issued; do not reveal it.
		return autherror.ErrTokenInvalid
	}

	return err
}

// RequestEmailVerification mints a verification token for the authenticated
// user, bound to their current address.
func (s *UserService) RequestEmailVerification(ctx context.Context, actor *domain.User) error {
	if actor.IsVerified {
		return nil
	}

	token, err := s.tokenService.GenerateVerifyToken(actor.ID, actor.Email)
	if err != nil {
		return err
	}

	log.Printf("verification requested for user %s, token: %s", actor.ID, token)

	return nil
}

// ConfirmEmailVerification marks the account verified. The token is rejected
// if the account's address changed since it was minted.
func (s *UserService) ConfirmEmailVerification(ctx context.Context, input dto.VerifyInput) (*domain.User, error) {
	claims, err := s.tokenService.VerifyEmailToken(input.Token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !strings.EqualFold(user.Email, claims.Email) {
		return nil, autherror.ErrTokenInvalid
	}

	verified := true

	return s.repo.Update(ctx, user.ID, domain.UserPatch{IsVerified: &verified})
}
