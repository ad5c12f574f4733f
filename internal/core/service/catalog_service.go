package service

import (
	"context"

	"github.com/akeller/storefront/internal/core/domain"
	"github.com/akeller/storefront/internal/port"
)

// CatalogService is routine product CRUD over the ledger store.
type CatalogService struct {
	store port.LedgerStore
}

func NewCatalogService(store port.LedgerStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, p *domain.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.store.CreateProduct(ctx, p)
}

func (s *CatalogService) Update(ctx context.Context, p *domain.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	return s.store.UpdateProduct(ctx, p)
}

// Delete removes a product from the catalog. Existing orders keep their
// name/price snapshots; cart lines for the product are dropped with it.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	return s.store.DeleteProduct(ctx, id)
}

func validateProduct(p *domain.Product) error {
	if p.Price.IsNegative() {
		return domain.ErrInvalidPrice
	}
	if p.Stock < 0 {
		return domain.ErrInvalidStock
	}
	return nil
}
