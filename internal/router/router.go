package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"fieldworks/internal/config"
	"fieldworks/internal/handler"
	"fieldworks/internal/middleware"
	"fieldworks/internal/service"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Session      *handler.SessionHandler
	Document     *handler.DocumentHandler
	Product      *handler.ProductHandler
	Conversation *handler.ConversationHandler
	Portal       *handler.PortalHandler
	Health       *handler.HealthHandler
}

// Limiters holds the rate limiters applied to API and portal login routes.
type Limiters struct {
	API         *middleware.RateLimiter
	PortalLogin *middleware.RateLimiter
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(cfg *config.Config, authSvc service.AuthService, h Handlers, limits Limiters, logger *zap.Logger) *gin.Engine {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORS))

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	if !cfg.Server.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")

	// Client portal
	portal := v1.Group("/portal")
	portal.POST("/login", limits.PortalLogin.Middleware(), h.Portal.Login)
	portalAuthed := portal.Group("")
	portalAuthed.Use(middleware.PortalAuth(authSvc))
	portalAuthed.GET("/dashboard", h.Portal.Dashboard)
	portalAuthed.POST("/estimates/:id/approve", h.Portal.Approve)
	portalAuthed.POST("/estimates/:id/reject", h.Portal.Reject)

	// Staff routes - require valid JWT
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(authSvc))
	protected.Use(limits.API.Middleware())

	// Builder sessions
	sessions := protected.Group("/sessions")
	sessions.POST("", h.Session.Open)
	sessions.GET("/:id", h.Session.Get)
	sessions.DELETE("/:id", h.Session.Close)
	sessions.POST("/:id/items/product", h.Session.AddProduct)
	sessions.POST("/:id/items/custom", h.Session.AddCustomLine)
	sessions.PATCH("/:id/items/:item_id", h.Session.UpdateLineItem)
	sessions.DELETE("/:id/items/:item_id", h.Session.RemoveLineItem)
	sessions.PATCH("/:id/details", h.Session.UpdateDetails)
	sessions.POST("/:id/save", h.Session.Save)
	sessions.POST("/:id/next", h.Session.Next)
	sessions.POST("/:id/back", h.Session.Back)
	sessions.GET("/:id/suggestions", h.Session.Suggestions)
	sessions.PUT("/:id/recipient", h.Session.SetRecipient)
	sessions.POST("/:id/send", h.Session.Send)

	// Documents
	documents := protected.Group("/documents")
	documents.GET("", h.Document.List)
	documents.GET("/export", h.Document.Export)
	documents.GET("/:id", h.Document.GetByID)
	documents.GET("/:id/pdf", h.Document.PDF)
	documents.PUT("/:id/status", h.Document.UpdateStatus)
	documents.DELETE("/:id", h.Document.Delete)

	// Catalog
	products := protected.Group("/products")
	products.GET("", h.Product.List)
	products.GET("/:id", h.Product.GetByID)

	// Conversations
	conversations := protected.Group("/conversations")
	conversations.GET("", h.Conversation.List)
	conversations.GET("/stream", h.Conversation.Stream)
	conversations.GET("/:id/messages", h.Conversation.Messages)
	conversations.POST("/:id/messages", h.Conversation.SendMessage)
	conversations.POST("/:id/read", h.Conversation.MarkRead)

	return r
}
