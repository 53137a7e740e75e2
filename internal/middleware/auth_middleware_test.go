package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/database/testutil"
	"github.com/opsdesk/opsdesk/internal/services"
)

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := services.NewUserService(db)
	require.NoError(t, err)

	staff, err := users.Create(nil, services.CreateUserInput{
		Username: "alice",
		Email:    "alice@example.test",
		Password: "correct horse battery",
		IsStaff:  true,
	})
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "secret",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Minute,
	})
	require.NoError(t, err)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:  staff.ID,
		IsStaff: true,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, users), func(c *gin.Context) {
		actor, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(CtxUserIDKey),
			"name":    actor.DisplayName,
		})
	})

	// Missing Authorization header -> 401
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token -> 401
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token -> downstream handler executes with the resolved actor
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, staff.ID, payload["user_id"])
	require.Equal(t, "alice", payload["name"])
}

func TestAuthMiddlewareRejectsDeactivatedAccount(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := services.NewUserService(db)
	require.NoError(t, err)

	staff, err := users.Create(nil, services.CreateUserInput{
		Username: "bob",
		Email:    "bob@example.test",
		Password: "correct horse battery",
		IsStaff:  true,
	})
	require.NoError(t, err)

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "secret", AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{UserID: staff.ID, IsStaff: true})
	require.NoError(t, err)

	_, err = users.SetActive(nil, staff.ID, false)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/secure", Auth(jwtSvc, users), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	// Token is still valid but the account is disabled.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireStaff(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/staff-only", func(c *gin.Context) {
		c.Set(CtxActorKey, iauth.Actor{UserID: "u1", IsAuthenticated: true, IsStaff: false})
	}, RequireStaff(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/staff-only", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}
