package notifications

import (
	"context"
	"errors"
)

var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification delivery in progress")
)

type SendRatingReceivedInput struct {
	OwnerEmail string
	OwnerName  string
	StoreName  string
	Rating     int
	RaterName  string
}

type SendWelcomeInput struct {
	Email string
	Name  string
	Role  string
}

type Notifier interface {
	SendRatingReceived(ctx context.Context, input SendRatingReceivedInput) error
	SendWelcome(ctx context.Context, input SendWelcomeInput) error
}
