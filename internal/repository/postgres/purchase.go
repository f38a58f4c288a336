package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/dbx"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
)

// CommitPurchase applies the stock decrement and deposit reset in a single
// transaction. The buyer row is locked first so a concurrent deposit cannot
// slip in between the funds check and the reset; the decrement only matches
// while the product still has the cost the subtotal was computed from.
func (r *Repository) CommitPurchase(ctx context.Context, commit domain.PurchaseCommit) (int, error) {
	var remaining int
	err := dbx.WithTx(ctx, r.db, pgx.TxOptions{}, func(ctx context.Context, tx dbx.DBTX) error {
		var deposit int
		if err := tx.QueryRow(ctx, `SELECT deposit FROM users WHERE id = $1 FOR UPDATE`, commit.BuyerID).Scan(&deposit); err != nil {
			return mapError(err)
		}
		if deposit != commit.ExpectedDeposit {
			return repository.ErrStaleDeposit
		}

		left, err := decrementStock(ctx, tx, commit.ProductID, commit.Quantity, commit.ExpectedCost)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `UPDATE users SET deposit = 0, updated_at = NOW() WHERE id = $1`, commit.BuyerID)
		if err != nil {
			return fmt.Errorf("reset deposit: %w", mapError(err))
		}
		if err := requireAffected(tag); err != nil {
			return err
		}
		remaining = left
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}
