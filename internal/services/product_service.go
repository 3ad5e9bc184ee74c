package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasira/billing-api/internal/models"
	"github.com/kasira/billing-api/internal/repository"
)

// ProductService manages the sellable product catalog
type ProductService struct {
	store repository.Store
}

// NewProductService creates a new product service
func NewProductService(store repository.Store) *ProductService {
	return &ProductService{store: store}
}

// ProductInput carries the product fields for create and update
type ProductInput struct {
	Name        string
	Description *string
	Price       decimal.Decimal
	IsActive    *bool
}

// CreateProduct adds a product to the catalog
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}

	product := &models.Product{
		ID:          uuid.New(),
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		IsActive:    true,
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}
	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, fmt.Errorf("%w: insert product: %v", ErrStoreFailure, err)
	}
	return product, nil
}

// GetProduct returns one product by id
func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "product")
	}
	return product, nil
}

// ListProducts returns a page of products
func (s *ProductService) ListProducts(ctx context.Context, query *repository.ListQuery) ([]models.Product, int64, error) {
	products, total, err := s.store.Products().List(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: list products: %v", ErrStoreFailure, err)
	}
	return products, total, nil
}

// UpdateProduct edits a product. Price changes only affect invoices created
// afterwards; issued invoices keep the amount they were issued with.
func (s *ProductService) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*models.Product, error) {
	product, err := s.store.Products().FindByID(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "product")
	}

	if in.Name != "" {
		product.Name = in.Name
	}
	if in.Description != nil {
		product.Description = in.Description
	}
	if !in.Price.IsZero() {
		if in.Price.IsNegative() {
			return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
		}
		product.Price = in.Price
	}
	if in.IsActive != nil {
		product.IsActive = *in.IsActive
	}

	if err := s.store.Products().Update(ctx, product); err != nil {
		return nil, fmt.Errorf("%w: update product: %v", ErrStoreFailure, err)
	}
	return product, nil
}

// DeleteProduct removes a product from the catalog
func (s *ProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.Products().FindByID(ctx, id); err != nil {
		return wrapLookup(err, "product")
	}
	if err := s.store.Products().Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: delete product: %v", ErrStoreFailure, err)
	}
	return nil
}
