package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/database/testutil"
	"github.com/opsdesk/opsdesk/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedDefaults())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-secret",
		Issuer:         "test",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	router, err := NewRouter(db, jwtSvc)
	require.NoError(t, err)

	return router, db, jwtSvc
}

func createTestStaff(t *testing.T, db *gorm.DB, username string) string {
	t.Helper()

	users, err := services.NewUserService(db)
	require.NoError(t, err)

	user, err := users.Create(nil, services.CreateUserInput{
		Username: username,
		Email:    username + "@example.test",
		Password: "correct horse battery",
		IsStaff:  true,
	})
	require.NoError(t, err)
	return user.ID
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/api/auth/me", "/api/signals", "/api/users", "/api/activities"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRouterLoginAndSignalFlow(t *testing.T) {
	router, db, _ := newTestRouter(t)
	createTestStaff(t, db, "alice")

	// Login
	body, _ := json.Marshal(gin.H{"username": "alice", "password": "correct horse battery"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var loginResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loginResp))
	require.NotEmpty(t, loginResp.Data.Token)
	authz := "Bearer " + loginResp.Data.Token

	// Fetch the seeded signal types
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/signal-types", nil)
	req.Header.Set("Authorization", authz)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var typesResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &typesResp))
	require.NotEmpty(t, typesResp.Data)

	// Create a signal
	body, _ = json.Marshal(gin.H{
		"signal_type_id": typesResp.Data[0].ID,
		"body":           "Leaking radiator in the gym",
	})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/signals", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authz)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var createResp struct {
		Data struct {
			ID     string `json:"id"`
			Status *struct {
				Key string `json:"key"`
			} `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	require.NotEmpty(t, createResp.Data.ID)
	require.NotNil(t, createResp.Data.Status)
	require.Equal(t, "open", createResp.Data.Status.Key)

	// History shows the creation event with a display label
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/signals/%s/history", createResp.Data.ID), nil)
	req.Header.Set("Authorization", authz)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var historyResp struct {
		Data []struct {
			Action      string `json:"action"`
			ActionLabel string `json:"action_label"`
			URL         string `json:"url"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &historyResp))
	require.Len(t, historyResp.Data, 1)
	require.Equal(t, "created", historyResp.Data[0].Action)
	require.Equal(t, "Created", historyResp.Data[0].ActionLabel)
	require.Equal(t, "/signals/"+createResp.Data.ID+"/", historyResp.Data[0].URL)
}

func TestRouterRejectsNonStaff(t *testing.T) {
	router, db, jwtSvc := newTestRouter(t)

	users, err := services.NewUserService(db)
	require.NoError(t, err)
	visitor, err := users.Create(nil, services.CreateUserInput{
		Username: "visitor",
		Email:    "visitor@example.test",
		Password: "correct horse battery",
	})
	require.NoError(t, err)

	token, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{UserID: visitor.ID})
	require.NoError(t, err)

	// Identity endpoint works for any authenticated account.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Module endpoints require the staff flag.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/signals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouterUnknownRouteReturnsJSON404(t *testing.T) {
	router, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}
