package purchase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository/memory"
)

type publisherStub struct {
	mu     sync.Mutex
	events []domain.StockEvent
}

func (p *publisherStub) PublishStock(e domain.StockEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seed creates a seller, a product and a buyer holding deposit.
func seed(t *testing.T, store *memory.Store, cost, stock, deposit int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "seller", Username: "seller", Role: domain.RoleSeller}))
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "buyer", Username: "buyer", Role: domain.RoleBuyer}))
	require.NoError(t, store.CreateProduct(ctx, &domain.Product{ID: "p1", Name: "Gum", Cost: cost, AmountAvailable: stock, SellerID: "seller"}))
	if deposit > 0 {
		_, err := store.IncrementDeposit(ctx, "buyer", deposit)
		require.NoError(t, err)
	}
}

func state(t *testing.T, store *memory.Store) (stock, deposit int) {
	t.Helper()
	p, err := store.GetProductByID(context.Background(), "p1")
	require.NoError(t, err)
	u, err := store.GetUserByID(context.Background(), "buyer")
	require.NoError(t, err)
	return p.AmountAvailable, u.Deposit
}

func TestBuyReturnsChange(t *testing.T) {
	store := memory.New()
	seed(t, store, 5, 10, 200)
	pub := &publisherStub{}
	svc := New(store, store, store, pub, discardLogger())

	receipt, err := svc.Buy(context.Background(), "buyer", "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.Receipt{SubTotal: 25, Product: "Gum", TotalChange: 175, Change: []int{100, 50, 20, 5}}, receipt)

	stock, deposit := state(t, store)
	assert.Equal(t, 5, stock)
	assert.Zero(t, deposit)

	require.Len(t, pub.events, 1)
	assert.Equal(t, domain.StockEvent{ProductID: "p1", AmountAvailable: 5, OccurredAt: pub.events[0].OccurredAt}, pub.events[0])
}

func TestBuyExactAmountGivesNoChange(t *testing.T) {
	store := memory.New()
	seed(t, store, 35, 1, 35)
	svc := New(store, store, store, nil, discardLogger())

	receipt, err := svc.Buy(context.Background(), "buyer", "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, receipt.TotalChange)
	assert.NotNil(t, receipt.Change)
	assert.Empty(t, receipt.Change)
}

func TestBuyRejections(t *testing.T) {
	cases := []struct {
		name      string
		cost      int
		stock     int
		deposit   int
		buyer     string
		product   string
		quantity  int
		kind      apperr.Kind
		mentionsP bool
	}{
		{name: "insufficient funds", cost: 5, stock: 10, deposit: 2, buyer: "buyer", product: "p1", quantity: 1, kind: apperr.InsufficientFunds, mentionsP: true},
		{name: "insufficient stock", cost: 5, stock: 2, deposit: 100, buyer: "buyer", product: "p1", quantity: 3, kind: apperr.InsufficientStock, mentionsP: true},
		{name: "zero quantity", cost: 5, stock: 2, deposit: 100, buyer: "buyer", product: "p1", quantity: 0, kind: apperr.InvalidInput},
		{name: "negative quantity", cost: 5, stock: 2, deposit: 100, buyer: "buyer", product: "p1", quantity: -1, kind: apperr.InvalidInput},
		{name: "empty product", cost: 5, stock: 2, deposit: 100, buyer: "buyer", product: " ", quantity: 1, kind: apperr.InvalidInput},
		{name: "unknown product", cost: 5, stock: 2, deposit: 100, buyer: "buyer", product: "p9", quantity: 1, kind: apperr.NotFound},
		{name: "subtotal beyond int range", cost: math.MaxInt/2 + 1, stock: 10, deposit: 5, buyer: "buyer", product: "p1", quantity: 2, kind: apperr.InsufficientFunds, mentionsP: true},
		{name: "subtotal beyond int range without deposit", cost: math.MaxInt/2 + 1, stock: 10, deposit: 0, buyer: "buyer", product: "p1", quantity: 3, kind: apperr.InsufficientFunds, mentionsP: true},
		{name: "unknown buyer", cost: 5, stock: 2, deposit: 100, buyer: "ghost", product: "p1", quantity: 1, kind: apperr.NotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := memory.New()
			seed(t, store, tc.cost, tc.stock, tc.deposit)
			svc := New(store, store, store, nil, discardLogger())

			_, err := svc.Buy(context.Background(), tc.buyer, tc.product, tc.quantity)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			if tc.mentionsP {
				assert.Contains(t, apperr.Message(err), "Gum")
			}

			stock, deposit := state(t, store)
			assert.Equal(t, tc.stock, stock)
			assert.Equal(t, tc.deposit, deposit)
		})
	}
}

func TestBuyIsAtomicUnderFaults(t *testing.T) {
	for _, step := range []string{memory.StepDecrementStock, memory.StepResetDeposit} {
		t.Run(step, func(t *testing.T) {
			failing := step
			store := memory.New(memory.WithFault(func(s string) error {
				if s == failing {
					return errors.New("storage unavailable")
				}
				return nil
			}))
			seed(t, store, 5, 10, 200)
			pub := &publisherStub{}
			svc := New(store, store, store, pub, discardLogger())

			_, err := svc.Buy(context.Background(), "buyer", "p1", 5)
			require.Error(t, err)
			assert.Equal(t, apperr.Internal, apperr.KindOf(err))

			stock, deposit := state(t, store)
			assert.Equal(t, 10, stock, "stock untouched")
			assert.Equal(t, 200, deposit, "deposit untouched")
			assert.Empty(t, pub.events)
		})
	}
}

// depositRacer credits the buyer after the orchestrator read the balance and
// before the commit runs.
type depositRacer struct {
	store *memory.Store
}

func (r depositRacer) CommitPurchase(ctx context.Context, commit domain.PurchaseCommit) (int, error) {
	if _, err := r.store.IncrementDeposit(ctx, commit.BuyerID, 50); err != nil {
		return 0, err
	}
	return r.store.CommitPurchase(ctx, commit)
}

func TestBuyDetectsBalanceChangedMidPurchase(t *testing.T) {
	store := memory.New()
	seed(t, store, 5, 10, 100)
	svc := New(store, store, depositRacer{store: store}, nil, discardLogger())

	_, err := svc.Buy(context.Background(), "buyer", "p1", 1)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.True(t, errors.Is(err, repository.ErrStaleDeposit))

	stock, deposit := state(t, store)
	assert.Equal(t, 10, stock)
	assert.Equal(t, 150, deposit, "the concurrent deposit is kept, nothing is charged")
}

// repricer changes the product cost after the orchestrator priced the order
// and before the commit runs.
type repricer struct {
	store *memory.Store
}

func (r repricer) CommitPurchase(ctx context.Context, commit domain.PurchaseCommit) (int, error) {
	p, err := r.store.GetProductByID(ctx, commit.ProductID)
	if err != nil {
		return 0, err
	}
	p.Cost = 50
	if err := r.store.UpdateProduct(ctx, p); err != nil {
		return 0, err
	}
	return r.store.CommitPurchase(ctx, commit)
}

func TestBuyDetectsPriceChangedMidPurchase(t *testing.T) {
	store := memory.New()
	seed(t, store, 5, 10, 100)
	svc := New(store, store, repricer{store: store}, nil, discardLogger())

	_, err := svc.Buy(context.Background(), "buyer", "p1", 1)
	require.Error(t, err)
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))
	assert.True(t, errors.Is(err, repository.ErrStalePrice))

	stock, deposit := state(t, store)
	assert.Equal(t, 10, stock)
	assert.Equal(t, 100, deposit)
}

func TestConcurrentBuysNeverOversell(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "seller", Username: "seller", Role: domain.RoleSeller}))
	require.NoError(t, store.CreateProduct(ctx, &domain.Product{ID: "p1", Name: "Gum", Cost: 10, AmountAvailable: 3, SellerID: "seller"}))

	const buyers = 12
	for i := 0; i < buyers; i++ {
		id := fmt.Sprintf("buyer-%d", i)
		require.NoError(t, store.CreateUser(ctx, &domain.User{ID: id, Username: id, Role: domain.RoleBuyer}))
		_, err := store.IncrementDeposit(ctx, id, 100)
		require.NoError(t, err)
	}
	svc := New(store, store, store, nil, discardLogger())

	var wg sync.WaitGroup
	var mu sync.Mutex
	var sold, outOfStock int
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Buy(ctx, id, "p1", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				sold++
			case apperr.Is(err, apperr.InsufficientStock):
				outOfStock++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("buyer-%d", i))
	}
	wg.Wait()

	assert.Equal(t, 3, sold)
	assert.Equal(t, buyers-3, outOfStock)

	p, err := store.GetProductByID(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.AmountAvailable)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	charged := 0
	for _, u := range users {
		if u.Role == domain.RoleBuyer && u.Deposit == 0 {
			charged++
		}
	}
	assert.Equal(t, sold, charged, "only successful buyers lose their deposit")
}
