package domain

import "time"

// Product is an item stocked in the machine.
type Product struct {
	ID              string
	Name            string
	Cost            int
	AmountAvailable int
	SellerID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProductView is the outward projection of a Product.
type ProductView struct {
	ID              string `json:"id"`
	Name            string `json:"productName"`
	Cost            int    `json:"cost"`
	AmountAvailable int    `json:"amountAvailable"`
	SellerID        string `json:"sellerId"`
}

// View converts the product into its response shape.
func (p Product) View() ProductView {
	return ProductView{
		ID:              p.ID,
		Name:            p.Name,
		Cost:            p.Cost,
		AmountAvailable: p.AmountAvailable,
		SellerID:        p.SellerID,
	}
}

// ProductPatch carries optional product fields for partial updates.
type ProductPatch struct {
	Name            *string `json:"name,omitempty"`
	Cost            *int    `json:"cost,omitempty"`
	AmountAvailable *int    `json:"amountAvailable,omitempty"`
}

// StockEvent announces a new stock level for a product.
type StockEvent struct {
	ProductID       string    `json:"product_id"`
	AmountAvailable int       `json:"amount_available"`
	OccurredAt      time.Time `json:"occurred_at"`
}
