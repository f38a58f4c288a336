package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/coins"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
)

// maxColumnValue is the largest cost or stock the products table stores.
const maxColumnValue = math.MaxInt32

// StockPublisher receives every change to a product's stock level.
type StockPublisher interface {
	PublishStock(domain.StockEvent)
}

// Service manages the catalog.
type Service struct {
	products  repository.ProductRepository
	publisher StockPublisher
	logger    *slog.Logger
}

// New constructs a Service. publisher may be nil.
func New(products repository.ProductRepository, publisher StockPublisher, logger *slog.Logger) Service {
	return Service{products: products, publisher: publisher, logger: logger}
}

// CreateInput describes a new product.
type CreateInput struct {
	Name            string `json:"name"`
	Cost            int    `json:"cost"`
	AmountAvailable int    `json:"amountAvailable"`
}

// Create adds a product owned by sellerID.
func (s Service) Create(ctx context.Context, sellerID string, in CreateInput) (domain.ProductView, error) {
	name := strings.TrimSpace(in.Name)
	if err := validate(name, in.Cost, in.AmountAvailable); err != nil {
		return domain.ProductView{}, err
	}
	product := &domain.Product{
		ID:              uuid.NewString(),
		Name:            name,
		Cost:            in.Cost,
		AmountAvailable: in.AmountAvailable,
		SellerID:        sellerID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.products.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.ProductView{}, apperr.New(apperr.Conflict, fmt.Sprintf("product %q already exists", name))
		}
		return domain.ProductView{}, mapError(err, "create product")
	}
	s.logger.Info("product created", "product_id", product.ID, "seller_id", sellerID)
	s.publish(product.ID, product.AmountAvailable)
	return product.View(), nil
}

// Get returns a product by id.
func (s Service) Get(ctx context.Context, id string) (domain.ProductView, error) {
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return domain.ProductView{}, mapError(err, "get product")
	}
	return product.View(), nil
}

// GetByName returns a product by its unique name.
func (s Service) GetByName(ctx context.Context, name string) (domain.ProductView, error) {
	product, err := s.products.GetProductByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return domain.ProductView{}, mapError(err, "get product")
	}
	return product.View(), nil
}

// List returns the whole catalog.
func (s Service) List(ctx context.Context) ([]domain.ProductView, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, mapError(err, "list products")
	}
	views := make([]domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, p.View())
	}
	return views, nil
}

// Update applies a partial change to a product the seller owns.
func (s Service) Update(ctx context.Context, sellerID, id string, patch domain.ProductPatch) (domain.ProductView, error) {
	if patch.Name == nil && patch.Cost == nil && patch.AmountAvailable == nil {
		return domain.ProductView{}, apperr.New(apperr.InvalidInput, "nothing to update")
	}
	product, err := s.owned(ctx, sellerID, id)
	if err != nil {
		return domain.ProductView{}, err
	}
	stockBefore := product.AmountAvailable
	if patch.Name != nil {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Cost != nil {
		product.Cost = *patch.Cost
	}
	if patch.AmountAvailable != nil {
		product.AmountAvailable = *patch.AmountAvailable
	}
	if err := validate(product.Name, product.Cost, product.AmountAvailable); err != nil {
		return domain.ProductView{}, err
	}
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.ProductView{}, apperr.New(apperr.Conflict, fmt.Sprintf("product %q already exists", product.Name))
		}
		return domain.ProductView{}, mapError(err, "update product")
	}
	s.logger.Info("product updated", "product_id", id)
	if product.AmountAvailable != stockBefore {
		s.publish(product.ID, product.AmountAvailable)
	}
	return product.View(), nil
}

// Delete removes a product the seller owns.
func (s Service) Delete(ctx context.Context, sellerID, id string) error {
	if _, err := s.owned(ctx, sellerID, id); err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return mapError(err, "delete product")
	}
	s.logger.Info("product deleted", "product_id", id)
	s.publish(id, 0)
	return nil
}

func (s Service) owned(ctx context.Context, sellerID, id string) (*domain.Product, error) {
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, mapError(err, "get product")
	}
	if product.SellerID != sellerID {
		return nil, apperr.New(apperr.Forbidden, "only the seller who created this product can change it")
	}
	return product, nil
}

func (s Service) publish(id string, amount int) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishStock(domain.StockEvent{ProductID: id, AmountAvailable: amount, OccurredAt: time.Now().UTC()})
}

// validate enforces the catalog invariants. Costs are whole multiples of the
// smallest coin so every purchase leaves change the machine can pay out.
func validate(name string, cost, amount int) error {
	switch {
	case name == "":
		return apperr.New(apperr.InvalidInput, "product name is required")
	case cost <= 0:
		return apperr.New(apperr.InvalidInput, "cost must be greater than zero")
	case cost > maxColumnValue:
		return apperr.New(apperr.InvalidInput, fmt.Sprintf("cost must be at most %d", maxColumnValue))
	case cost%coins.Smallest != 0:
		return apperr.New(apperr.InvalidInput, fmt.Sprintf("cost must be a multiple of %d", coins.Smallest))
	case amount < 0:
		return apperr.New(apperr.InvalidInput, "amountAvailable cannot be negative")
	case amount > maxColumnValue:
		return apperr.New(apperr.InvalidInput, fmt.Sprintf("amountAvailable must be at most %d", maxColumnValue))
	}
	return nil
}

func mapError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.New(apperr.NotFound, "product not found")
	case errors.Is(err, repository.ErrConflict):
		return apperr.Wrap(apperr.Conflict, "product conflicts with an existing record", err)
	case errors.Is(err, repository.ErrInvalidArgument):
		return apperr.Wrap(apperr.InvalidInput, "invalid product data", err)
	case errors.Is(err, repository.ErrInsufficientStock):
		return apperr.Wrap(apperr.InsufficientStock, "insufficient stock", err)
	default:
		return apperr.Wrap(apperr.Internal, op, err)
	}
}
