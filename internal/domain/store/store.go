package store

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("store not found")
	ErrEmailTaken    = errors.New("store email already in use")
	ErrOwnerNotFound = errors.New("store owner not found")
)

type Store struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateStoreRequest identifies the owner by email; the repo resolves it to
// an existing Store Owner user or fails with ErrOwnerNotFound.
type CreateStoreRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Email      string `json:"email" binding:"required,email"`
	Address    string `json:"address" binding:"required,max=400"`
	OwnerEmail string `json:"ownerEmail" binding:"required,email"`
}

type ListStoresFilter struct {
	Name    *string
	Address *string
	Sort    string
}

// WithRatings is the listing projection: the store plus its current average
// and, when the caller is a Normal User, the caller's own rating. Averages
// are recomputed on every read, never stored.
type WithRatings struct {
	Store
	AverageRating float64 `json:"averageRating"`
	UserRating    *int    `json:"userRating"`
}

// RaterDetail is one row of the owner dashboard: a rating joined with the
// rater's profile fields.
type RaterDetail struct {
	Rating      int       `json:"rating"`
	RatedAt     time.Time `json:"ratedAt"`
	UserName    string    `json:"userName"`
	UserEmail   string    `json:"userEmail"`
	UserAddress string    `json:"userAddress"`
}

// OwnerStats is the owner dashboard payload for the store the caller owns.
type OwnerStats struct {
	StoreID       string        `json:"storeId"`
	StoreName     string        `json:"storeName"`
	AverageRating float64       `json:"averageRating"`
	Ratings       []RaterDetail `json:"ratings"`
}

// AdminStats holds the system wide totals for the admin dashboard.
type AdminStats struct {
	TotalUsers   int `json:"totalUsers"`
	TotalStores  int `json:"totalStores"`
	TotalRatings int `json:"totalRatings"`
}
