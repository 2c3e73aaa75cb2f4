package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"fieldworks/internal/config"
	"fieldworks/internal/domain"
	"fieldworks/internal/handler"
	"fieldworks/internal/middleware"
	"fieldworks/internal/router"
	"fieldworks/internal/service"
	"fieldworks/mocks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubFeed struct{}

func (stubFeed) Subscribe(uuid.UUID) (<-chan []domain.Conversation, func()) {
	return make(chan []domain.Conversation), func() {}
}

func (stubFeed) Degraded() bool { return false }

func newEngine(authSvc service.AuthService, products service.ProductService) *gin.Engine {
	logger := zap.NewNop()
	cfg := &config.Config{Server: config.ServerConfig{Environment: "test"}}
	h := router.Handlers{
		Session:      handler.NewSessionHandler(new(mocks.MockBuilderSessionService), logger),
		Document:     handler.NewDocumentHandler(new(mocks.MockDocumentService), logger),
		Product:      handler.NewProductHandler(products, logger),
		Conversation: handler.NewConversationHandler(new(mocks.MockConversationService), stubFeed{}, logger),
		Portal:       handler.NewPortalHandler(new(mocks.MockPortalService), logger),
		Health:       handler.NewHealthHandler(nil, nil),
	}
	limits := router.Limiters{
		API:         middleware.NewRateLimiter(100, 100, logger),
		PortalLogin: middleware.NewPerMinuteLimiter(10, 5, logger),
	}
	return router.Setup(cfg, authSvc, h, limits, logger)
}

func TestSetup_StaffRoutesRequireToken(t *testing.T) {
	r := newEngine(new(mocks.MockAuthService), new(mocks.MockProductService))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/products", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestSetup_StaffRouteWithToken(t *testing.T) {
	authSvc := new(mocks.MockAuthService)
	products := new(mocks.MockProductService)
	tenantID := uuid.New()
	authSvc.On("ValidateToken", "staff").Return(&service.Claims{TenantID: tenantID, UserID: uuid.New()}, nil)
	products.On("List", mock.Anything, tenantID, true).Return([]domain.Product{}, nil)

	r := newEngine(authSvc, products)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/products?upsell=true", http.NoBody)
	req.Header.Set("Authorization", "Bearer staff")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	products.AssertExpectations(t)
}

func TestSetup_PortalRoutesRejectStaffTokens(t *testing.T) {
	authSvc := new(mocks.MockAuthService)
	authSvc.On("ValidatePortalToken", "staff").Return(nil, domain.ErrUnauthorized)

	r := newEngine(authSvc, new(mocks.MockProductService))
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/portal/dashboard", http.NoBody)
	req.Header.Set("Authorization", "Bearer staff")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetup_Liveness(t *testing.T) {
	r := newEngine(new(mocks.MockAuthService), new(mocks.MockProductService))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
