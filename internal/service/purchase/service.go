// Package purchase turns a buyer's deposit into a product and change.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/coins"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
)

// StockPublisher receives the stock level left after a purchase.
type StockPublisher interface {
	PublishStock(domain.StockEvent)
}

// Service orchestrates purchases.
type Service struct {
	products  repository.ProductRepository
	users     repository.UserRepository
	purchases repository.PurchaseRepository
	publisher StockPublisher
	logger    *slog.Logger
}

// New constructs a Service. publisher may be nil.
func New(products repository.ProductRepository, users repository.UserRepository, purchases repository.PurchaseRepository, publisher StockPublisher, logger *slog.Logger) Service {
	return Service{products: products, users: users, purchases: purchases, publisher: publisher, logger: logger}
}

// Buy sells quantity units of a product to the buyer, spending the whole
// deposit and returning the remainder as coins.
func (s Service) Buy(ctx context.Context, buyerID, productID string, quantity int) (domain.Receipt, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Receipt{}, apperr.New(apperr.InvalidInput, "productId is required")
	}
	if quantity < 1 {
		return domain.Receipt{}, apperr.New(apperr.InvalidInput, "amountOfProduct must be at least 1")
	}

	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Receipt{}, apperr.New(apperr.NotFound, "product not found")
		}
		return domain.Receipt{}, apperr.Wrap(apperr.Internal, "load product", err)
	}
	if product.AmountAvailable < quantity {
		return domain.Receipt{}, insufficientStock(product.Name)
	}

	buyer, err := s.users.GetUserByID(ctx, buyerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Receipt{}, apperr.New(apperr.NotFound, "buyer not found")
		}
		return domain.Receipt{}, apperr.Wrap(apperr.Internal, "load buyer", err)
	}
	// A subtotal beyond MaxInt is more than any deposit can hold.
	if product.Cost > 0 && quantity > math.MaxInt/product.Cost {
		return domain.Receipt{}, insufficientFunds(product.Name)
	}
	subTotal := product.Cost * quantity
	if buyer.Deposit < subTotal {
		return domain.Receipt{}, insufficientFunds(product.Name)
	}

	change := buyer.Deposit - subTotal
	changeCoins := coins.MakeChange(coins.Accepted, change)
	if coins.Sum(changeCoins) != change {
		return domain.Receipt{}, apperr.Wrap(apperr.Internal, "make change",
			fmt.Errorf("change %d not representable in %v", change, coins.Accepted))
	}

	remaining, err := s.purchases.CommitPurchase(ctx, domain.PurchaseCommit{
		BuyerID:         buyer.ID,
		ProductID:       product.ID,
		Quantity:        quantity,
		ExpectedDeposit: buyer.Deposit,
		ExpectedCost:    product.Cost,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			return domain.Receipt{}, insufficientStock(product.Name)
		case errors.Is(err, repository.ErrStaleDeposit):
			return domain.Receipt{}, apperr.Wrap(apperr.Conflict, "balance changed, retry", err)
		case errors.Is(err, repository.ErrStalePrice):
			return domain.Receipt{}, apperr.Wrap(apperr.Conflict, "price changed, retry", err)
		case errors.Is(err, repository.ErrNotFound):
			return domain.Receipt{}, apperr.New(apperr.NotFound, "product or buyer no longer exists")
		default:
			return domain.Receipt{}, apperr.Wrap(apperr.Internal, "commit purchase", err)
		}
	}

	s.logger.Info("purchase committed",
		"buyer_id", buyer.ID,
		"product_id", product.ID,
		"quantity", quantity,
		"sub_total", subTotal,
		"change", change,
	)
	if s.publisher != nil {
		s.publisher.PublishStock(domain.StockEvent{ProductID: product.ID, AmountAvailable: remaining, OccurredAt: time.Now().UTC()})
	}
	return domain.Receipt{
		SubTotal:    subTotal,
		Product:     product.Name,
		TotalChange: change,
		Change:      changeCoins,
	}, nil
}

func insufficientStock(name string) error {
	return apperr.New(apperr.InsufficientStock, fmt.Sprintf("not enough %s in stock for the amount requested", name))
}

func insufficientFunds(name string) error {
	return apperr.New(apperr.InsufficientFunds, fmt.Sprintf("insufficient deposit to purchase %s", name))
}
