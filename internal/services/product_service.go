package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"productsapi/internal/models"
	"productsapi/internal/repositories"
)

// Product lifecycle events published after successful writes.
const (
	EventProductCreated             = "product.created"
	EventProductUpdated             = "product.updated"
	EventProductAvailabilityToggled = "product.availability_toggled"
	EventProductDeleted             = "product.deleted"
)

// EventPublisher publishes product lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event string, payload any) error
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo      repositories.ProductRepository
	publisher EventPublisher
}

// NewProductService creates a new ProductService. publisher may be nil.
func NewProductService(repo repositories.ProductRepository, publisher EventPublisher) *ProductService {
	return &ProductService{
		repo:      repo,
		publisher: publisher,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id uint) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct stores a new, available product.
func (s *ProductService) CreateProduct(ctx context.Context, name string, price float64) (*models.Product, error) {
	product := &models.Product{
		Name:         name,
		Price:        price,
		Availability: true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, EventProductCreated, *product)
	return product, nil
}

// UpdateProduct replaces name, price and availability of an existing product.
func (s *ProductService) UpdateProduct(ctx context.Context, id uint, name string, price float64, availability bool) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Name = name
	product.Price = price
	product.Availability = availability
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, EventProductUpdated, *product)
	return product, nil
}

// ToggleAvailability flips the availability of a product. Calling it twice
// restores the original value.
func (s *ProductService) ToggleAvailability(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	product.Availability = !product.Availability
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	s.publish(ctx, EventProductAvailabilityToggled, *product)
	return product, nil
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, EventProductDeleted, map[string]uint{"id": id})
	return nil
}

// publish never fails the caller; the write already happened.
func (s *ProductService) publish(ctx context.Context, event string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, event, payload); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to publish product event")
	}
}
