package user

import (
	"errors"
	"time"
)

// Role is a closed enumeration. There is no inheritance between roles;
// every permission decision goes through the authz decision table.
type Role string

const (
	RoleAdmin  Role = "System Administrator"
	RoleOwner  Role = "Store Owner"
	RoleNormal Role = "Normal User"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleNormal:
		return true
	default:
		return false
	}
}

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already in use")
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Address      string    `json:"address"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateUserRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Address  string `json:"address" binding:"omitempty,max=400"`
	Role     Role   `json:"role" binding:"required,oneof='System Administrator' 'Store Owner' 'Normal User'"`
}

// with pointers if optional, it will be nil
type ListUsersFilter struct {
	Name    *string
	Email   *string
	Address *string
	Role    *Role
	Sort    string
}

// OwnerStats is the read-side annotation attached to Store Owner rows in
// admin listings: the average rating of the store they own plus its name.
// Nil when the user owns no store.
type OwnerStats struct {
	StoreName     string  `json:"storeName"`
	AverageRating float64 `json:"rating"`
}

// WithStats pairs a user with the optional owner annotation.
type WithStats struct {
	User
	Owner *OwnerStats `json:"ownerStats,omitempty"`
}
