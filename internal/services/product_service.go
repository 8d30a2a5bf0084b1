package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"toko/internal/metrics"
	"toko/internal/models"
	"toko/internal/repositories"
)

// ProductsPerPage is the fixed size of a product listing page.
const ProductsPerPage = 5

// Routing keys of product lifecycle events.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
)

// EventPublisher delivers serialized events to a message broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// ProductEvent is the payload published for every product mutation.
type ProductEvent struct {
	Event      string    `json:"event"`
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name,omitempty"`
	Price      string    `json:"price,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher EventPublisher
	logger    *slog.Logger
}

// NewProductService creates a new ProductService. publisher may be nil, in
// which case no events are emitted.
func NewProductService(repo repositories.ProductRepository, publisher EventPublisher, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// ListProducts returns the requested page of products.
func (s *ProductService) ListProducts(ctx context.Context, page int) (*models.ProductPage, error) {
	result, err := s.repo.Paginate(ctx, page, ProductsPerPage)
	observe("list", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return result, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	observe("get", err)
	return product, err
}

// CreateProduct stores a new product built from a validated payload.
func (s *ProductService) CreateProduct(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	product := &models.Product{Name: in.Name, Price: in.Price}
	err := s.repo.Create(ctx, product)
	observe("create", err)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventProductCreated, product)
	return product, nil
}

// UpdateProduct replaces the name and price of the product with the given ID.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in models.ProductInput) (*models.Product, error) {
	err := s.repo.Update(ctx, &models.Product{ID: id, Name: in.Name, Price: in.Price})
	observe("update", err)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload product %s: %w", id, err)
	}

	s.emit(ctx, EventProductUpdated, product)
	return product, nil
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	observe("delete", err)
	if err != nil {
		return err
	}

	s.emit(ctx, EventProductDeleted, &models.Product{ID: id})
	return nil
}

// CountProducts returns the number of stored products.
func (s *ProductService) CountProducts(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// emit publishes a lifecycle event. Failures are logged and never surface to
// the caller: the mutation has already been committed.
func (s *ProductService) emit(ctx context.Context, event string, product *models.Product) {
	if s.publisher == nil {
		return
	}

	ev := ProductEvent{
		Event:      event,
		ProductID:  product.ID,
		Name:       product.Name,
		OccurredAt: time.Now().UTC(),
	}
	if event != EventProductDeleted {
		ev.Price = product.Price.String()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal product event", "event", event, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, event, body); err != nil {
		s.logger.WarnContext(ctx, "failed to publish product event",
			"event", event, "product_id", product.ID, "error", err)
		return
	}
	s.logger.DebugContext(ctx, "published product event", "event", event, "product_id", product.ID)
}

func observe(operation string, err error) {
	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(err, repositories.ErrProductNotFound):
		outcome = metrics.OutcomeNotFound
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.ProductOperations.WithLabelValues(operation, outcome).Inc()
}
