package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"fieldworks/internal/domain"
	"fieldworks/internal/middleware"
	"fieldworks/internal/service"
	"fieldworks/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	mockAuth := new(mocks.MockAuthService)

	tenantID := uuid.New()
	userID := uuid.New()
	mockAuth.On("ValidateToken", "valid-token").Return(&service.Claims{
		TenantID: tenantID,
		UserID:   userID,
		Email:    "tech@test.com",
	}, nil)

	r := gin.New()
	r.Use(middleware.AuthMiddleware(mockAuth))
	r.GET("/test", func(c *gin.Context) {
		tid, _ := middleware.GetTenantID(c)
		uid, _ := middleware.GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"tenant_id": tid, "user_id": uid})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer valid-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, tenantID.String(), resp["tenant_id"])
	assert.Equal(t, userID.String(), resp["user_id"])
	mockAuth.AssertExpectations(t)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"invalid token", "Bearer bad-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := new(mocks.MockAuthService)
			mockAuth.On("ValidateToken", "bad-token").Return(nil, domain.ErrUnauthorized).Maybe()

			r := gin.New()
			r.Use(middleware.AuthMiddleware(mockAuth))
			r.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"ok": true})
			})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestPortalAuth_SetsClientContext(t *testing.T) {
	mockAuth := new(mocks.MockAuthService)

	tenantID := uuid.New()
	clientID := uuid.New()
	mockAuth.On("ValidatePortalToken", "portal-token").Return(&service.PortalClaims{
		TenantID: tenantID,
		ClientID: clientID,
	}, nil)

	r := gin.New()
	r.Use(middleware.PortalAuth(mockAuth))
	r.GET("/portal", func(c *gin.Context) {
		cid, err := middleware.GetClientID(c)
		assert.NoError(t, err)
		_, err = middleware.GetUserID(c)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		c.JSON(http.StatusOK, gin.H{"client_id": cid})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/portal", http.NoBody)
	req.Header.Set("Authorization", "Bearer portal-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), clientID.String())
}

func TestPortalAuth_RejectsStaffToken(t *testing.T) {
	mockAuth := new(mocks.MockAuthService)
	mockAuth.On("ValidatePortalToken", "staff-token").Return(nil, domain.ErrUnauthorized)

	r := gin.New()
	r.Use(middleware.PortalAuth(mockAuth))
	r.GET("/portal", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/portal", http.NoBody)
	req.Header.Set("Authorization", "Bearer staff-token")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockAuth.AssertNotCalled(t, "ValidateToken", "staff-token")
}
