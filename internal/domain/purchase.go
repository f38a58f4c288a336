package domain

// PurchaseCommit describes the atomic effects of one purchase: the stock
// decrement and the reset of the buyer deposit from ExpectedDeposit to zero.
// The commit only applies while the product still costs ExpectedCost.
type PurchaseCommit struct {
	BuyerID         string
	ProductID       string
	Quantity        int
	ExpectedDeposit int
	ExpectedCost    int
}

// Receipt is returned to the buyer after a committed purchase.
type Receipt struct {
	SubTotal    int    `json:"sub_total"`
	Product     string `json:"product"`
	TotalChange int    `json:"total_change"`
	Change      []int  `json:"Change"`
}
