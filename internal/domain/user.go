package domain

import "time"

// Role constants recognised by the access checks.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// User represents a vending machine account. PasswordHash never leaves the
// service layer; handlers only ever see UserView.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Role         string
	Deposit      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserView is the outward projection of a User.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Deposit  int    `json:"deposit"`
	Role     string `json:"role"`
}

// View strips credentials from the account.
func (u User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username, Deposit: u.Deposit, Role: u.Role}
}

// ValidRole reports whether role is one of the supported account roles.
func ValidRole(role string) bool {
	return role == RoleBuyer || role == RoleSeller
}

// Principal is the authenticated caller attached to a request. It is also the
// payload stored in the session marker.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
