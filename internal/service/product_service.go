package service

import (
	"context"

	"github.com/google/uuid"

	"fieldworks/internal/domain"
	"fieldworks/internal/port"
)

// ProductService defines the product catalog contract.
type ProductService interface {
	List(ctx context.Context, tenantID uuid.UUID, upsellOnly bool) ([]domain.Product, error)
	Get(ctx context.Context, tenantID, productID uuid.UUID) (*domain.Product, error)
}

type productService struct {
	products port.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(products port.ProductRepository) ProductService {
	return &productService{products: products}
}

// List returns the active catalog, optionally only the upsell products.
func (s *productService) List(ctx context.Context, tenantID uuid.UUID, upsellOnly bool) ([]domain.Product, error) {
	products, err := s.products.List(ctx, tenantID, upsellOnly)
	if err != nil {
		return nil, err
	}
	active := make([]domain.Product, 0, len(products))
	for i := range products {
		if products[i].IsActive {
			active = append(active, products[i])
		}
	}
	return active, nil
}

func (s *productService) Get(ctx context.Context, tenantID, productID uuid.UUID) (*domain.Product, error) {
	return s.products.GetByID(ctx, tenantID, productID)
}
