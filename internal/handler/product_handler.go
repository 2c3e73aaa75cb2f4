package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fieldworks/internal/service"
)

// ProductHandler serves the product catalog.
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, logger: logger}
}

// List handles GET /api/v1/products
// @Summary List catalog products
// @Tags products
// @Produce json
// @Param upsell query bool false "Only products offered as upsells"
// @Success 200 {object} Response{data=[]domain.Product} "Active products"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security BearerAuth
// @Router /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}

	products, err := h.productService.List(c.Request.Context(), tenantID, c.Query("upsell") == "true")
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, products)
}

// GetByID handles GET /api/v1/products/:id
// @Summary Get a catalog product
// @Tags products
// @Produce json
// @Param id path string true "Product ID (UUID)"
// @Success 200 {object} Response{data=domain.Product} "Product"
// @Failure 404 {object} ErrorResponseBody "Product not found"
// @Security BearerAuth
// @Router /products/{id} [get]
func (h *ProductHandler) GetByID(c *gin.Context) {
	tenantID, _, ok := extractAuthContext(c)
	if !ok {
		return
	}
	productID, ok := parseIDParam(c, "id", "product")
	if !ok {
		return
	}

	product, err := h.productService.Get(c.Request.Context(), tenantID, productID)
	if err != nil {
		HandleError(c, h.logger, err)
		return
	}

	RespondOK(c, product)
}
