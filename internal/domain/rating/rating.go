package rating

import (
	"errors"
	"time"
)

const (
	MinValue = 1
	MaxValue = 5
)

var (
	ErrInvalidValue = errors.New("rating must be between 1 and 5")
	ErrNotFound     = errors.New("rating not found")
)

// Rating is one user's opinion of one store. The (user, store) pair is
// unique; resubmission overwrites the value in place.
type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	StoreID   string    `json:"storeId"`
	Value     int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SubmitRequest uses a pointer so a missing field and a zero value are both
// rejected by binding instead of silently defaulting.
type SubmitRequest struct {
	Rating *int `json:"rating" binding:"required,min=1,max=5"`
}

func ValidValue(v int) bool {
	return v >= MinValue && v <= MaxValue
}

// NotificationDetail is the denormalized view the worker needs to tell a
// store owner about a rating they received.
type NotificationDetail struct {
	RatingID   string
	Value      int
	StoreID    string
	StoreName  string
	OwnerEmail string
	OwnerName  string
	RaterName  string
}
