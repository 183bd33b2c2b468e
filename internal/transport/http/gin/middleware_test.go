package httpgin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
	"github.com/mbiandou/parkflow/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type singleUserSource struct {
	user *domain.User
}

func (s *singleUserSource) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	if s.user != nil && s.user.Username == username {
		return s.user, nil
	}
	return nil, repository.ErrNotFound
}

func (s *singleUserSource) Create(_ context.Context, _, _ string, _ domain.Role) (*domain.User, error) {
	return nil, repository.ErrConflict
}

func (s *singleUserSource) List(_ context.Context) ([]domain.User, error) {
	return nil, nil
}

func (s *singleUserSource) Delete(_ context.Context, _ int64) error {
	return repository.ErrNotFound
}

func authServiceWithUser(t *testing.T, role domain.Role) (*auth.Service, string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("pass-word-1"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := auth.New(&singleUserSource{user: &domain.User{
		ID:           7,
		Username:     "staff",
		PasswordHash: string(hash),
		Role:         role,
	}}, "test-signing-key", time.Hour)

	token, _, err := svc.Login(context.Background(), "staff", "pass-word-1")
	require.NoError(t, err)

	return svc, token
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("generates when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("echoes when present", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	})
}

func TestAPIKeyMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware("lane-secret"))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name       string
		key        string
		wantStatus int
	}{
		{"valid key", "lane-secret", http.StatusOK},
		{"wrong key", "other", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc, token := authServiceWithUser(t, domain.RoleGerant)

	r := gin.New()
	r.Use(AuthMiddleware(svc))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("valid token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("mangled token", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("gerant blocked from admin", func(t *testing.T) {
		svc, token := authServiceWithUser(t, domain.RoleGerant)

		r := gin.New()
		r.Use(AuthMiddleware(svc), RequireRole(domain.RoleSuperAdmin))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("super admin allowed", func(t *testing.T) {
		svc, token := authServiceWithUser(t, domain.RoleSuperAdmin)

		r := gin.New()
		r.Use(AuthMiddleware(svc), RequireRole(domain.RoleSuperAdmin))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
