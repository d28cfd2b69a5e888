package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for a real mail provider and writes the delivery
// to the log instead.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendWelcomeEmail(ctx context.Context, in SendWelcomeEmailInput) error {
	n.log.InfoContext(ctx, "notification.welcome_email",
		"user_id", in.UserID,
		"email", in.Email,
		"first_name", in.FirstName,
	)
	return nil
}
