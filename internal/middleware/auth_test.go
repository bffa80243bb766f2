package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetapi/internal/models"
)

const testSecret = "test-secret-key-for-unit-tests"

func setupAuthRouter(tokens *TokenManager, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(tokens)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint("userID"), "username": c.GetString("username")})
	})
	r.GET("/me", handlers...)
	return r
}

func doAuthRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
	require.True(t, ok, "expected error object in response")
	code, _ := errObj["code"].(string)
	return code
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tokens := NewTokenManager(testSecret, time.Hour)
	user := &models.User{Username: "alice"}
	user.ID = 7

	token, err := tokens.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, time.Hour, tokens.TTL())
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	user := &models.User{Username: "alice"}
	user.ID = 1
	token, err := NewTokenManager("other-secret", time.Hour).GenerateAccessToken(user)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tokens := NewTokenManager(testSecret, time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	user := &models.User{Username: "alice"}
	user.ID = 1

	token, err := tokens.GenerateAccessToken(user)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Minute).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsNoneAlgorithm(t *testing.T) {
	claims := &JWTClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokenManager(testSecret, time.Hour).ParseToken(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := NewTokenManager(testSecret, time.Hour)
	user := &models.User{Username: "bob"}
	user.ID = 42
	valid, err := tokens.GenerateAccessToken(user)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid_token", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase_scheme", header: "bearer " + valid, wantStatus: http.StatusOK},
		{name: "missing_header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "garbage_token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{name: "extra_parts", header: "Bearer " + valid + " extra", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doAuthRequest(setupAuthRouter(tokens), tt.header)
			assert.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusOK {
				body := parseBody(t, rec)
				assert.Equal(t, float64(42), body["user_id"])
				assert.Equal(t, "bob", body["username"])
			} else {
				assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
			}
		})
	}
}

func TestAdminOnly(t *testing.T) {
	tokens := NewTokenManager(testSecret, time.Hour)
	users := map[uint]*models.User{
		1: {Username: "admin", IsAdmin: true},
		2: {Username: "plain"},
	}
	lookup := func(id uint) (*models.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		return nil, errors.New("not found")
	}
	router := setupAuthRouter(tokens, AdminOnly(lookup))

	tokenFor := func(id uint, name string) string {
		u := &models.User{Username: name}
		u.ID = id
		tok, err := tokens.GenerateAccessToken(u)
		require.NoError(t, err)
		return "Bearer " + tok
	}

	t.Run("admin_allowed", func(t *testing.T) {
		rec := doAuthRequest(router, tokenFor(1, "admin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non_admin_forbidden", func(t *testing.T) {
		rec := doAuthRequest(router, tokenFor(2, "plain"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
	})

	t.Run("deleted_user_unauthorized", func(t *testing.T) {
		rec := doAuthRequest(router, tokenFor(3, "ghost"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
