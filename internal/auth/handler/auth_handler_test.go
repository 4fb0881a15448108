package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gueripep/brainflash-server/config"
	"github.com/gueripep/brainflash-server/internal/auth/domain"
	"github.com/gueripep/brainflash-server/internal/auth/dto"
	"github.com/gueripep/brainflash-server/internal/auth/handler"
	"github.com/gueripep/brainflash-server/internal/auth/service"
	"github.com/gueripep/brainflash-server/internal/mocks"
)

const testAPIKey = "legacy-static-key"

type handlerFixture struct {
	app    *fiber.App
	repo   *mocks.MockUserRepository
	hasher *mocks.MockHasher
	tokens *service.TokenService
}

// newHandlerFixture wires the real user and token services around a mocked
// repository and hasher, then mounts the full route table.
func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockUserRepository(ctrl)
	hasher := mocks.NewMockHasher(ctrl)
	tokens := service.NewTokenService("test-access-secret", "test-refresh-secret", 60, 10080, 60, 1440)
	cfg := &config.Config{MaxActiveRefreshTokens: 5}
	userService := service.NewUserService(repo, tokens, hasher, cfg)
	authHandler := handler.NewAuthHandler(userService, testAPIKey)

	app := fiber.New()
	handler.RegisterRoutes(app, authHandler)

	return &handlerFixture{app: app, repo: repo, hasher: hasher, tokens: tokens}
}

func jsonRequest(method, path string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func fixtureUser() *domain.User {
	now := time.Now()
	return &domain.User{
		ID:           "0b88ed51-36a4-4b2e-b39c-cbd89a0a3c6d",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$stored-hash",
		FirstName:    "Alice",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (f *handlerFixture) accessTokenFor(t *testing.T, user *domain.User) string {
	t.Helper()

	access, _, _, err := f.tokens.Generate(user.ID, user.Email)
	require.NoError(t, err)
	return access
}

func TestRegister(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		f := newHandlerFixture(t)

		f.repo.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").Return(nil, nil)
		f.hasher.EXPECT().Hash("Secr3t!").Return("$argon2id$fake", nil)
		f.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/register",
			dto.RegisterInput{Email: "alice@example.com", Password: "Secr3t!"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "alice@example.com", body["email"])
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "password_hash")
	})

	t.Run("bad body", func(t *testing.T) {
		f := newHandlerFixture(t)

		req := httptest.NewRequest("POST", "/api/v1/auth/register", bytes.NewReader([]byte("")))
		req.Header.Set("Content-Type", "application/json")

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("validation error names the field", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/register",
			dto.RegisterInput{Email: "not-an-email", Password: "Secr3t!"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "email", body["field"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		f := newHandlerFixture(t)

		f.repo.EXPECT().GetByEmail(gomock.Any(), "alice@example.com").Return(fixtureUser(), nil)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/register",
			dto.RegisterInput{Email: "alice@example.com", Password: "Secr3t!"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})
}

func TestLogin(t *testing.T) {
	t.Run("success returns token pair", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()

		f.repo.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
		f.hasher.EXPECT().Verify("Secr3t!", user.PasswordHash).Return(true)
		f.repo.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
		f.repo.EXPECT().GetActiveCountByUserID(gomock.Any(), user.ID).Return(1, nil)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/login",
			dto.LoginInput{Email: user.Email, Password: "Secr3t!"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["access_token"])
		assert.NotEmpty(t, body["refresh_token"])
		assert.Equal(t, "bearer", body["token_type"])
	})

	t.Run("wrong password unauthorized", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()

		f.repo.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)
		f.hasher.EXPECT().Verify("wrong", user.PasswordHash).Return(false)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/login",
			dto.LoginInput{Email: user.Email, Password: "wrong"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown email gives the same response", func(t *testing.T) {
		f := newHandlerFixture(t)

		f.repo.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/login",
			dto.LoginInput{Email: "ghost@example.com", Password: "whatever"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "unauthorized", body["error"])
	})
}

func TestGetMe(t *testing.T) {
	t.Run("returns profile without password fields", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()
		token := f.accessTokenFor(t, user)

		f.repo.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)

		req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, user.Email, body["email"])
		assert.NotContains(t, body, "password")
		assert.NotContains(t, body, "password_hash")
	})

	t.Run("missing token unauthorized", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp, err := f.app.Test(httptest.NewRequest("GET", "/api/v1/users/me", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token unauthorized", func(t *testing.T) {
		f := newHandlerFixture(t)

		req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("deactivated subject forbidden despite valid token", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()
		token := f.accessTokenFor(t, user)

		deactivated := *user
		deactivated.IsActive = false
		f.repo.EXPECT().GetByID(gomock.Any(), user.ID).Return(&deactivated, nil)

		req := httptest.NewRequest("GET", "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}

func TestGetUserByID(t *testing.T) {
	otherID := "5f6de1fc-93ea-4a39-8b6d-6e2fd1a73c1f"

	t.Run("non-superuser reading another user forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()
		token := f.accessTokenFor(t, user)

		f.repo.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)

		req := httptest.NewRequest("GET", "/api/v1/users/"+otherID, nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("own id succeeds", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()
		token := f.accessTokenFor(t, user)

		f.repo.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil).Times(2)

		req := httptest.NewRequest("GET", "/api/v1/users/"+user.ID, nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("superuser reads anyone", func(t *testing.T) {
		f := newHandlerFixture(t)
		admin := fixtureUser()
		admin.IsSuperuser = true
		token := f.accessTokenFor(t, admin)

		target := fixtureUser()
		target.ID = otherID
		target.Email = "bob@example.com"

		f.repo.EXPECT().GetByID(gomock.Any(), admin.ID).Return(admin, nil)
		f.repo.EXPECT().GetByID(gomock.Any(), otherID).Return(target, nil)

		req := httptest.NewRequest("GET", "/api/v1/users/"+otherID, nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		body := decodeBody(t, resp)
		assert.Equal(t, "bob@example.com", body["email"])
	})

	t.Run("superuser gets 404 for unknown id", func(t *testing.T) {
		f := newHandlerFixture(t)
		admin := fixtureUser()
		admin.IsSuperuser = true
		token := f.accessTokenFor(t, admin)

		f.repo.EXPECT().GetByID(gomock.Any(), admin.ID).Return(admin, nil)
		f.repo.EXPECT().GetByID(gomock.Any(), otherID).Return(nil, nil)

		req := httptest.NewRequest("GET", "/api/v1/users/"+otherID, nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("malformed id is not found", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()
		token := f.accessTokenFor(t, user)

		f.repo.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)

		req := httptest.NewRequest("GET", "/api/v1/users/not-a-uuid", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

func TestForgotPassword(t *testing.T) {
	t.Run("known address accepted", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()

		f.repo.EXPECT().GetByEmail(gomock.Any(), user.Email).Return(user, nil)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/forgot-password",
			dto.ForgotPasswordInput{Email: user.Email}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	})

	t.Run("unknown address indistinguishable", func(t *testing.T) {
		f := newHandlerFixture(t)

		f.repo.EXPECT().GetByEmail(gomock.Any(), "ghost@example.com").Return(nil, nil)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/forgot-password",
			dto.ForgotPasswordInput{Email: "ghost@example.com"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	})
}

func TestResetPassword(t *testing.T) {
	t.Run("valid token updates password", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()

		token, err := f.tokens.GenerateResetToken(user.ID)
		require.NoError(t, err)

		f.hasher.EXPECT().Hash("NewSecr3t!").Return("$argon2id$new", nil)
		f.repo.EXPECT().Update(gomock.Any(), user.ID, gomock.Any()).Return(user, nil)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/reset-password",
			dto.ResetPasswordInput{Token: token, Password: "NewSecr3t!"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("bogus token unauthorized", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/reset-password",
			dto.ResetPasswordInput{Token: "bogus", Password: "NewSecr3t!"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("access token does not work as reset token", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()
		access := f.accessTokenFor(t, user)

		resp, err := f.app.Test(jsonRequest("POST", "/api/v1/auth/reset-password",
			dto.ResetPasswordInput{Token: access, Password: "NewSecr3t!"}))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAPIKeyEndpoint(t *testing.T) {
	t.Run("valid api key passes", func(t *testing.T) {
		f := newHandlerFixture(t)

		req := httptest.NewRequest("GET", "/api/v1/service/health", nil)
		req.Header.Set("X-API-Key", testAPIKey)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("wrong api key unauthorized", func(t *testing.T) {
		f := newHandlerFixture(t)

		req := httptest.NewRequest("GET", "/api/v1/service/health", nil)
		req.Header.Set("X-API-Key", "wrong-key")

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("missing credentials unauthorized", func(t *testing.T) {
		f := newHandlerFixture(t)

		resp, err := f.app.Test(httptest.NewRequest("GET", "/api/v1/service/health", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("valid bearer token passes", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := fixtureUser()
		token := f.accessTokenFor(t, user)

		f.repo.EXPECT().GetByID(gomock.Any(), user.ID).Return(user, nil)

		req := httptest.NewRequest("GET", "/api/v1/service/health", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	// A presented bearer token takes precedence: it is verified on its own
	// merits and a valid API key cannot rescue it.
	t.Run("invalid bearer not rescued by valid api key", func(t *testing.T) {
		f := newHandlerFixture(t)

		req := httptest.NewRequest("GET", "/api/v1/service/health", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		req.Header.Set("X-API-Key", testAPIKey)

		resp, err := f.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}
