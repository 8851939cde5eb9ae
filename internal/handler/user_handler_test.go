package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tube-server/internal/config"
	"tube-server/internal/domain"
	"tube-server/internal/models"
	"tube-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUserService позволяет подменять поведение по месту в каждом тесте.
type fakeUserService struct {
	registerFn       func(ctx context.Context, in service.RegisterInput) (*models.User, error)
	loginFn          func(ctx context.Context, in service.LoginInput) (*models.User, *models.TokenDetails, error)
	logoutFn         func(ctx context.Context, userID uuid.UUID) error
	refreshFn        func(ctx context.Context, refreshToken string) (*models.TokenDetails, error)
	changePasswordFn func(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confirmPassword string) error
	getUserFn        func(ctx context.Context, userID uuid.UUID) (*models.User, error)
	verifyFn         func(ctx context.Context, tokenString string) (*domain.Claims, error)
}

var _ service.UserService = (*fakeUserService)(nil)

func (f *fakeUserService) Register(ctx context.Context, in service.RegisterInput) (*models.User, error) {
	return f.registerFn(ctx, in)
}

func (f *fakeUserService) Login(ctx context.Context, in service.LoginInput) (*models.User, *models.TokenDetails, error) {
	return f.loginFn(ctx, in)
}

func (f *fakeUserService) Logout(ctx context.Context, userID uuid.UUID) error {
	return f.logoutFn(ctx, userID)
}

func (f *fakeUserService) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	return f.refreshFn(ctx, refreshToken)
}

func (f *fakeUserService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confirmPassword string) error {
	return f.changePasswordFn(ctx, userID, oldPassword, newPassword, confirmPassword)
}

func (f *fakeUserService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return f.getUserFn(ctx, userID)
}

func (f *fakeUserService) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.User, error) {
	return nil, models.ErrInternalServer
}

func (f *fakeUserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	return nil, models.ErrInternalServer
}

func (f *fakeUserService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	return nil, models.ErrInternalServer
}

func (f *fakeUserService) VerifyAccessToken(ctx context.Context, tokenString string) (*domain.Claims, error) {
	return f.verifyFn(ctx, tokenString)
}

func testUser() *models.User {
	return &models.User{
		ID:            uuid.New(),
		Username:      "testuser1",
		Email:         "test@example.com",
		FullName:      "Test User",
		AvatarURL:     "https://cdn.example.com/media/avatar.png",
		CoverImageURL: "",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func setupRouter(svc service.UserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewUserHandler(svc, &config.Config{Env: "test", AccessTokenTTL: 5 * time.Minute, RefreshTokenTTL: 10 * time.Minute})
	// В тестах rate limiter пропускает все
	h.RegisterRoutes(router, func(c *gin.Context) { c.Next() })
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestLogin_SuccessEnvelopeAndCookies(t *testing.T) {
	user := testUser()
	tokens := &models.TokenDetails{AccessToken: "access-token-value", RefreshToken: "refresh-token-value"}
	svc := &fakeUserService{
		loginFn: func(ctx context.Context, in service.LoginInput) (*models.User, *models.TokenDetails, error) {
			assert.Equal(t, "testuser1", in.Username)
			return user, tokens, nil
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/login",
		gin.H{"username": "testuser1", "password": "password123"}, nil)

	require.Equal(t, http.StatusOK, w.Code)

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(http.StatusOK), envelope["statusCode"])
	assert.Equal(t, true, envelope["success"])
	assert.Equal(t, "User logged in successfully", envelope["message"])

	data, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "access-token-value", data["accessToken"])
	assert.Equal(t, "refresh-token-value", data["refreshToken"])

	userData, ok := data["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, user.ID.String(), userData["_id"])
	assert.Equal(t, "testuser1", userData["username"])
	_, hasHash := userData["passwordHash"]
	assert.False(t, hasHash, "password hash must never be serialized")

	// Обе cookie выставлены и httpOnly
	cookies := w.Result().Cookies()
	var accessCookie, refreshCookie *http.Cookie
	for _, c := range cookies {
		switch c.Name {
		case accessTokenCookie:
			accessCookie = c
		case refreshTokenCookie:
			refreshCookie = c
		}
	}
	require.NotNil(t, accessCookie)
	require.NotNil(t, refreshCookie)
	assert.Equal(t, "access-token-value", accessCookie.Value)
	assert.Equal(t, "refresh-token-value", refreshCookie.Value)
	assert.True(t, accessCookie.HttpOnly)
	assert.True(t, refreshCookie.HttpOnly)
	assert.False(t, accessCookie.Secure, "Secure is off outside production")
}

func TestLogin_InvalidCredentialsEnvelope(t *testing.T) {
	svc := &fakeUserService{
		loginFn: func(ctx context.Context, in service.LoginInput) (*models.User, *models.TokenDetails, error) {
			return nil, nil, models.ErrInvalidCredentials
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/login",
		gin.H{"username": "testuser1", "password": "wrong"}, nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)

	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(http.StatusUnauthorized), envelope["statusCode"])
	assert.Equal(t, false, envelope["success"])
	assert.Nil(t, envelope["data"])
	assert.NotNil(t, envelope["error"], "failure envelope must carry an error array")
}

func TestLogin_ValidationErrorCarriesFields(t *testing.T) {
	svc := &fakeUserService{
		loginFn: func(ctx context.Context, in service.LoginInput) (*models.User, *models.TokenDetails, error) {
			return nil, nil, models.NewValidationError("username or email is required", "username", "email")
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/login", gin.H{"password": "x"}, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "username or email is required", envelope["message"])
	errList, ok := envelope["error"].([]interface{})
	require.True(t, ok)
	assert.Len(t, errList, 2)
}

func TestRefreshToken_FromCookie(t *testing.T) {
	tokens := &models.TokenDetails{AccessToken: "new-access", RefreshToken: "new-refresh"}
	svc := &fakeUserService{
		refreshFn: func(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
			assert.Equal(t, "old-refresh", refreshToken)
			return tokens, nil
		},
	}
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(""))
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: "old-refresh"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "new-access", data["accessToken"])
	assert.Equal(t, "new-refresh", data["refreshToken"])
}

func TestRefreshToken_MissingToken(t *testing.T) {
	svc := &fakeUserService{
		refreshFn: func(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
			t.Fatal("service must not be called without a token")
			return nil, nil
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/refresh-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshToken_ExpiredMapsTo401(t *testing.T) {
	svc := &fakeUserService{
		refreshFn: func(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
			return nil, models.ErrTokenExpired
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/refresh-token",
		gin.H{"refreshToken": "expired-token"}, nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "Token has expired", envelope["message"])
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	svc := &fakeUserService{
		verifyFn: func(ctx context.Context, tokenString string) (*domain.Claims, error) {
			t.Fatal("verify must not be called without a token")
			return nil, nil
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodGet, "/api/v1/users/current-user", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCurrentUser_WithBearerToken(t *testing.T) {
	user := testUser()
	svc := &fakeUserService{
		verifyFn: func(ctx context.Context, tokenString string) (*domain.Claims, error) {
			assert.Equal(t, "valid-access-token", tokenString)
			return &domain.Claims{UserID: user.ID, Username: user.Username, Email: user.Email}, nil
		},
		getUserFn: func(ctx context.Context, userID uuid.UUID) (*models.User, error) {
			assert.Equal(t, user.ID, userID)
			return user, nil
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodGet, "/api/v1/users/current-user", nil,
		map[string]string{"Authorization": "Bearer valid-access-token"})

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, user.ID.String(), data["_id"])
	assert.Equal(t, "test@example.com", data["email"])
}

func TestCurrentUser_WithCookieToken(t *testing.T) {
	user := testUser()
	svc := &fakeUserService{
		verifyFn: func(ctx context.Context, tokenString string) (*domain.Claims, error) {
			assert.Equal(t, "cookie-access-token", tokenString)
			return &domain.Claims{UserID: user.ID}, nil
		},
		getUserFn: func(ctx context.Context, userID uuid.UUID) (*models.User, error) {
			return user, nil
		},
	}
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "cookie-access-token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogout_ClearsCookies(t *testing.T) {
	user := testUser()
	svc := &fakeUserService{
		verifyFn: func(ctx context.Context, tokenString string) (*domain.Claims, error) {
			return &domain.Claims{UserID: user.ID}, nil
		},
		logoutFn: func(ctx context.Context, userID uuid.UUID) error {
			assert.Equal(t, user.ID, userID)
			return nil
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/logout", nil,
		map[string]string{"Authorization": "Bearer some-token"})

	require.Equal(t, http.StatusOK, w.Code)

	for _, c := range w.Result().Cookies() {
		if c.Name == accessTokenCookie || c.Name == refreshTokenCookie {
			assert.Empty(t, c.Value)
			assert.Less(t, c.MaxAge, 0, "logout must expire the cookie")
		}
	}
}

func TestChangePassword_MismatchEnvelope(t *testing.T) {
	user := testUser()
	svc := &fakeUserService{
		verifyFn: func(ctx context.Context, tokenString string) (*domain.Claims, error) {
			return &domain.Claims{UserID: user.ID}, nil
		},
		changePasswordFn: func(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confirmPassword string) error {
			return models.NewValidationError("new password and confirmation do not match", "newPassword", "confirmPassword")
		},
	}
	router := setupRouter(svc)

	w := doJSON(t, router, http.MethodPost, "/api/v1/users/change-password",
		gin.H{"oldPassword": "a", "newPassword": "b", "confirmPassword": "c"},
		map[string]string{"Authorization": "Bearer some-token"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, false, envelope["success"])
	assert.Equal(t, "new password and confirmation do not match", envelope["message"])
}

func TestRegister_ConflictEnvelope(t *testing.T) {
	svc := &fakeUserService{
		registerFn: func(ctx context.Context, in service.RegisterInput) (*models.User, error) {
			return nil, models.ErrUserAlreadyExists
		},
	}
	router := setupRouter(svc)

	var buf bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", &buf)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, float64(http.StatusConflict), envelope["statusCode"])
	assert.Equal(t, false, envelope["success"])
}
