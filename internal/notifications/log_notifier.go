package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// LogNotifier stands in for a real mail/push provider. The env knobs let
// integration runs simulate a slow or failing provider.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) SendRatingReceived(ctx context.Context, in SendRatingReceivedInput) error {
	if err := n.simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.rating_received owner=%s store=%q rating=%d rater=%q",
		in.OwnerEmail, in.StoreName, in.Rating, in.RaterName,
	)
	return nil
}

func (n *LogNotifier) SendWelcome(ctx context.Context, in SendWelcomeInput) error {
	if err := n.simulateProvider(ctx); err != nil {
		return err
	}

	log.Printf("notification.welcome email=%s name=%q role=%q", in.Email, in.Name, in.Role)
	return nil
}

func (n *LogNotifier) simulateProvider(ctx context.Context) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}
