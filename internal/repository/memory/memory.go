// Package memory provides an in-process implementation of the repository
// interfaces for development and tests. A single mutex serializes every
// write, which gives CommitPurchase the same all-or-nothing behaviour the
// Postgres transaction provides.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ptfpinho23/HeadlessVendingMachine/internal/domain"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository"
)

// Commit steps reported to a FaultFunc.
const (
	StepDecrementStock = "decrement_stock"
	StepResetDeposit   = "reset_deposit"
)

// FaultFunc is consulted between the steps of a purchase commit; a non-nil
// error aborts the commit as if the store had failed at that point.
type FaultFunc func(step string) error

// Store keeps users and products in maps.
type Store struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	products map[string]domain.Product
	fault    FaultFunc
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFault installs a failure hook for purchase commits.
func WithFault(fn FaultFunc) Option {
	return func(s *Store) { s.fault = fn }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		users:    make(map[string]domain.User),
		products: make(map[string]domain.Product),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ repository.UserRepository     = (*Store)(nil)
	_ repository.ProductRepository  = (*Store)(nil)
	_ repository.PurchaseRepository = (*Store)(nil)
)

// CreateUser inserts a user; usernames are unique.
func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return repository.ErrConflict
	}
	for _, u := range s.users {
		if u.Username == user.Username {
			return repository.ErrConflict
		}
	}
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = cloneUser(*user)
	return nil
}

// GetUserByID retrieves a user by identifier.
func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

// GetUserByUsername fetches a user by username.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListUsers returns every account ordered by creation time.
func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// UpdateUser stores the password hash and role.
func (s *Store) UpdateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.PasswordHash = append([]byte(nil), user.PasswordHash...)
	current.Role = user.Role
	current.UpdatedAt = s.now()
	s.users[user.ID] = current
	user.UpdatedAt = current.UpdatedAt
	return nil
}

// DeleteUser removes an account together with the products it sells.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, id)
	for pid, p := range s.products {
		if p.SellerID == id {
			delete(s.products, pid)
		}
	}
	return nil
}

// IncrementDeposit adds amount to the deposit.
func (s *Store) IncrementDeposit(_ context.Context, id string, amount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	u.Deposit += amount
	u.UpdatedAt = s.now()
	s.users[id] = u
	return u.Deposit, nil
}

// ResetDeposit zeroes the deposit.
func (s *Store) ResetDeposit(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Deposit = 0
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

// CreateProduct inserts a product; names are unique and the seller must exist.
func (s *Store) CreateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[product.SellerID]; !ok {
		return repository.ErrNotFound
	}
	if s.nameTakenLocked(product.Name, "") {
		return repository.ErrConflict
	}
	if product.AmountAvailable < 0 || product.Cost <= 0 {
		return repository.ErrInvalidArgument
	}
	product.UpdatedAt = product.CreatedAt
	s.products[product.ID] = *product
	return nil
}

// GetProductByID fetches a product.
func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// GetProductByName fetches a product by name.
func (s *Store) GetProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ListProducts returns the catalog ordered by name.
func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

// UpdateProduct stores name, cost and stock.
func (s *Store) UpdateProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[product.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if s.nameTakenLocked(product.Name, product.ID) {
		return repository.ErrConflict
	}
	if product.AmountAvailable < 0 || product.Cost <= 0 {
		return repository.ErrInvalidArgument
	}
	current.Name = product.Name
	current.Cost = product.Cost
	current.AmountAvailable = product.AmountAvailable
	current.UpdatedAt = s.now()
	s.products[product.ID] = current
	product.UpdatedAt = current.UpdatedAt
	return nil
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

// DecrementStock removes qty units when enough stock remains.
func (s *Store) DecrementStock(_ context.Context, id string, qty int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decrementLocked(id, qty)
}

// CommitPurchase applies the stock decrement and the deposit reset under one
// lock. A failure after the decrement restores the product snapshot.
func (s *Store) CommitPurchase(_ context.Context, commit domain.PurchaseCommit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buyer, ok := s.users[commit.BuyerID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if buyer.Deposit != commit.ExpectedDeposit {
		return 0, repository.ErrStaleDeposit
	}
	snapshot, ok := s.products[commit.ProductID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if commit.ExpectedCost > 0 && snapshot.Cost != commit.ExpectedCost {
		return 0, repository.ErrStalePrice
	}

	if err := s.inject(StepDecrementStock); err != nil {
		return 0, err
	}
	remaining, err := s.decrementLocked(commit.ProductID, commit.Quantity)
	if err != nil {
		return 0, err
	}

	if err := s.inject(StepResetDeposit); err != nil {
		s.products[commit.ProductID] = snapshot
		return 0, err
	}
	buyer.Deposit = 0
	buyer.UpdatedAt = s.now()
	s.users[commit.BuyerID] = buyer
	return remaining, nil
}

func (s *Store) decrementLocked(id string, qty int) (int, error) {
	p, ok := s.products[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if qty > p.AmountAvailable {
		return 0, repository.ErrInsufficientStock
	}
	p.AmountAvailable -= qty
	p.UpdatedAt = s.now()
	s.products[id] = p
	return p.AmountAvailable, nil
}

func (s *Store) nameTakenLocked(name, exceptID string) bool {
	for id, p := range s.products {
		if id != exceptID && p.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) inject(step string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(step)
}

func cloneUser(u domain.User) domain.User {
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return u
}
