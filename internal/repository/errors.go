package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a unique constraint was violated.
	ErrConflict = errors.New("repository: conflict")
	// ErrInsufficientStock indicates a conditional stock decrement matched no row.
	ErrInsufficientStock = errors.New("repository: insufficient stock")
	// ErrStaleDeposit indicates the buyer deposit changed between read and commit.
	ErrStaleDeposit = errors.New("repository: stale deposit")
	// ErrStalePrice indicates the product cost changed between read and commit.
	ErrStalePrice = errors.New("repository: stale price")
)

// ErrInvalidArgument indicates the store rejected a value through a check constraint.
var ErrInvalidArgument = errors.New("repository: invalid argument")
