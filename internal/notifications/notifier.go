package notifications

import "context"

type SendWelcomeEmailInput struct {
	UserID    string
	Email     string
	FirstName string
}

// Notifier delivers user-facing notifications. Implementations wrap a real
// provider; the default just logs.
type Notifier interface {
	SendWelcomeEmail(ctx context.Context, input SendWelcomeEmailInput) error
}
