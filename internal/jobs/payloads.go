package jobs

import "time"

// RatingReceivedPayload tells the worker which rating to announce to the
// store's owner. Keep payload minimal and ID-based; the worker loads the
// denormalized details from the DB at execution time.
type RatingReceivedPayload struct {
	RatingID    string    `json:"ratingId"`
	StoreID     string    `json:"storeId"`
	RaterID     string    `json:"raterId"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"` // optional: correlation
}

// WelcomeUserPayload is enqueued when an administrator provisions an
// account, so the new user learns their credentials exist.
type WelcomeUserPayload struct {
	UserID      string    `json:"userId"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestID   string    `json:"requestId,omitempty"`
}
