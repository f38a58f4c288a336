package product

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/apperr"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
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

func newService(t *testing.T) (Service, *publisherStub) {
	t.Helper()
	store := memory.New()
	for _, u := range []domain.User{
		{ID: "seller-1", Username: "seller1", Role: domain.RoleSeller},
		{ID: "seller-2", Username: "seller2", Role: domain.RoleSeller},
	} {
		u := u
		require.NoError(t, store.CreateUser(context.Background(), &u))
	}
	pub := &publisherStub{}
	return New(store, pub, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func ptr[T any](v T) *T { return &v }

func TestCreateAndRead(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "seller-1", CreateInput{Name: "Cola", Cost: 35, AmountAvailable: 10})
	require.NoError(t, err)
	assert.Equal(t, "seller-1", created.SellerID)

	byID, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byName, err := svc.GetByName(ctx, "Cola")
	require.NoError(t, err)
	assert.Equal(t, created, byName)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.Len(t, pub.events, 1)
	assert.Equal(t, 10, pub.events[0].AmountAvailable)

	_, err = svc.Create(ctx, "seller-2", CreateInput{Name: "Cola", Cost: 5, AmountAvailable: 1})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Get(ctx, "missing")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t)
	cases := map[string]CreateInput{
		"blank name":         {Name: "  ", Cost: 5, AmountAvailable: 1},
		"zero cost":          {Name: "A", Cost: 0, AmountAvailable: 1},
		"negative cost":      {Name: "A", Cost: -5, AmountAvailable: 1},
		"unpayable cost":     {Name: "A", Cost: 7, AmountAvailable: 1},
		"negative quantity":  {Name: "A", Cost: 5, AmountAvailable: -1},
		"cost too large":     {Name: "A", Cost: math.MaxInt32 + 3, AmountAvailable: 1},
		"quantity too large": {Name: "A", Cost: 5, AmountAvailable: math.MaxInt32 + 1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "seller-1", in)
			assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
		})
	}
}

func TestCreateAcceptsLargestStorableValues(t *testing.T) {
	svc, _ := newService(t)

	p, err := svc.Create(context.Background(), "seller-1", CreateInput{Name: "Gold", Cost: math.MaxInt32 - 2, AmountAvailable: math.MaxInt32})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32-2, p.Cost)
	assert.Equal(t, math.MaxInt32, p.AmountAvailable)
}

func TestUpdateOwnership(t *testing.T) {
	svc, pub := newService(t)
	ctx := context.Background()
	cola, err := svc.Create(ctx, "seller-1", CreateInput{Name: "Cola", Cost: 35, AmountAvailable: 10})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "seller-1", CreateInput{Name: "Chips", Cost: 20, AmountAvailable: 3})
	require.NoError(t, err)

	_, err = svc.Update(ctx, "seller-2", cola.ID, domain.ProductPatch{Cost: ptr(40)})
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))

	updated, err := svc.Update(ctx, "seller-1", cola.ID, domain.ProductPatch{Cost: ptr(40), AmountAvailable: ptr(12)})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.Cost)
	assert.Equal(t, 12, updated.AmountAvailable)
	assert.Equal(t, "Cola", updated.Name)
	assert.Equal(t, 12, pub.events[len(pub.events)-1].AmountAvailable)

	_, err = svc.Update(ctx, "seller-1", cola.ID, domain.ProductPatch{Name: ptr("Chips")})
	assert.Equal(t, apperr.Conflict, apperr.KindOf(err))

	_, err = svc.Update(ctx, "seller-1", cola.ID, domain.ProductPatch{Cost: ptr(12)})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))

	_, err = svc.Update(ctx, "seller-1", cola.ID, domain.ProductPatch{})
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestDeleteOwnership(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	cola, err := svc.Create(ctx, "seller-1", CreateInput{Name: "Cola", Cost: 35, AmountAvailable: 10})
	require.NoError(t, err)

	assert.Equal(t, apperr.Forbidden, apperr.KindOf(svc.Delete(ctx, "seller-2", cola.ID)))
	require.NoError(t, svc.Delete(ctx, "seller-1", cola.ID))
	assert.Equal(t, apperr.NotFound, apperr.KindOf(svc.Delete(ctx, "seller-1", cola.ID)))
}
