package repository

import (
	"context"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
)

// UserRepository persists accounts and their deposits.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
	// IncrementDeposit adds amount to the deposit and returns the new balance.
	IncrementDeposit(ctx context.Context, id string, amount int) (int, error)
	ResetDeposit(ctx context.Context, id string) error
}

// ProductRepository persists the catalog.
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	// DecrementStock removes qty units and returns the remaining stock. It
	// fails with ErrInsufficientStock rather than going negative.
	DecrementStock(ctx context.Context, id string, qty int) (int, error)
}

// PurchaseRepository applies purchases atomically.
type PurchaseRepository interface {
	// CommitPurchase decrements stock and resets the buyer deposit in one
	// transaction, returning the remaining stock. Either both effects are
	// applied or neither.
	CommitPurchase(ctx context.Context, commit domain.PurchaseCommit) (int, error)
}
