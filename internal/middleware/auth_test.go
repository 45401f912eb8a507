package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/01moynul/taptosell-installments/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens(t *testing.T) *auth.Tokens {
	t.Helper()
	tokens, err := auth.NewTokens("test-secret-key")
	require.NoError(t, err)
	return tokens
}

func TestAuthMiddleware(t *testing.T) {
	tokens := newTokens(t)
	token, err := tokens.GenerateToken("buyer-1", auth.RoleBuyer, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"invalid format", token, http.StatusUnauthorized},
		{"invalid token", "Bearer invalid.token.here", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(AuthMiddleware(tokens))
			router.GET("/test", func(c *gin.Context) {
				role, _ := GetRole(c)
				c.JSON(http.StatusOK, gin.H{"actor": GetActorID(c), "role": role})
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.JSONEq(t, `{"actor":"buyer-1","role":"buyer"}`, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := newTokens(t)

	router := gin.New()
	router.Use(AuthMiddleware(tokens))
	router.GET("/seller", RequireRole(auth.RoleSeller, auth.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for role, want := range map[auth.Role]int{
		auth.RoleSeller:   http.StatusOK,
		auth.RoleManager:  http.StatusOK,
		auth.RoleBuyer:    http.StatusForbidden,
		auth.RoleSupplier: http.StatusForbidden,
	} {
		t.Run(string(role), func(t *testing.T) {
			tok, err := tokens.GenerateToken("actor", role, time.Hour)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/seller", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, want, w.Code)
		})
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	router := gin.New()
	router.GET("/x", RequireRole(auth.RoleManager), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
