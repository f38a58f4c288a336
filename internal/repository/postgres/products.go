package postgres

import (
	"context"
	"errors"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/dbx"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
)

const productColumns = `id, name, cost, amount_available, seller_id, created_at, updated_at`

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Cost, &p.AmountAvailable, &p.SellerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

// CreateProduct inserts a product.
func (r *Repository) CreateProduct(ctx context.Context, product *domain.Product) error {
	const query = `INSERT INTO products (id, name, cost, amount_available, seller_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`
	_, err := r.db.Exec(ctx, query, product.ID, product.Name, product.Cost, product.AmountAvailable, product.SellerID, product.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	product.UpdatedAt = product.CreatedAt
	return nil
}

// GetProductByID fetches a product.
func (r *Repository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.db.QueryRow(ctx, query, id))
}

// GetProductByName fetches a product by its unique name.
func (r *Repository) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE name = $1`
	return scanProduct(r.db.QueryRow(ctx, query, name))
}

// ListProducts returns the catalog ordered by name.
func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct stores name, cost and stock.
func (r *Repository) UpdateProduct(ctx context.Context, product *domain.Product) error {
	const query = `UPDATE products SET name = $2, cost = $3, amount_available = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	row := r.db.QueryRow(ctx, query, product.ID, product.Name, product.Cost, product.AmountAvailable)
	if err := row.Scan(&product.UpdatedAt); err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteProduct removes a product.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(tag)
}

// DecrementStock removes qty units when enough stock remains.
func (r *Repository) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	return decrementStock(ctx, r.db, id, qty, 0)
}

// decrementStock runs the conditional stock update. A positive expectedCost
// additionally requires the product to still carry that price.
func decrementStock(ctx context.Context, db dbx.DBTX, id string, qty, expectedCost int) (int, error) {
	query := `UPDATE products SET amount_available = amount_available - $2, updated_at = NOW()
		WHERE id = $1 AND amount_available >= $2 RETURNING amount_available`
	args := []any{id, qty}
	if expectedCost > 0 {
		query = `UPDATE products SET amount_available = amount_available - $2, updated_at = NOW()
		WHERE id = $1 AND amount_available >= $2 AND cost = $3 RETURNING amount_available`
		args = append(args, expectedCost)
	}
	var remaining int
	err := db.QueryRow(ctx, query, args...).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if err = mapError(err); !errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}
	// The conditional update matched nothing: the product is gone, was
	// repriced, or the stock is too low.
	var cost int
	if err := db.QueryRow(ctx, `SELECT cost FROM products WHERE id = $1`, id).Scan(&cost); err != nil {
		return 0, mapError(err)
	}
	if expectedCost > 0 && cost != expectedCost {
		return 0, repository.ErrStalePrice
	}
	return 0, repository.ErrInsufficientStock
}
