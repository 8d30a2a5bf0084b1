package repositories

import (
	"context"
	"errors"

	"toko/internal/models"
)

// ErrProductNotFound is returned when no product matches the requested ID.
var ErrProductNotFound = errors.New("product not found")

// ProductRepository defines the interface for product data access.
// Listings are ordered by ID ascending, which follows insertion order
// because IDs are time-ordered UUIDs.
type ProductRepository interface {
	Paginate(ctx context.Context, page, pageSize int) (*models.ProductPage, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

func newProductPage(items []models.Product, page, pageSize int, total int64) *models.ProductPage {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if items == nil {
		items = []models.Product{}
	}
	return &models.ProductPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return page, pageSize
}
