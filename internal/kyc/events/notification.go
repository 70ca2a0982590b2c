package events

import (
	"context"
	"log/slog"

	"kycflow/internal/kyc/models"
)

// Notifier logs the customer-facing follow-up for each disposition.
type Notifier struct {
	logger *slog.Logger
}

func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

func (n *Notifier) Name() string { return "notification" }

func (n *Notifier) Handle(ctx context.Context, e models.LifecycleEvent) error {
	action, ok := followUp(e.To)
	if !ok {
		return nil
	}
	n.logger.InfoContext(ctx, "kyc notification",
		"application_id", e.ApplicationID.String(),
		"customer_id", e.CustomerID.String(),
		"status", string(e.To),
		"action", action,
	)
	return nil
}

func followUp(status models.Status) (string, bool) {
	switch status {
	case models.StatusApproved:
		return "unlock_account_and_send_welcome", true
	case models.StatusRejected:
		return "send_rejection_notice", true
	case models.StatusActionRequired:
		return "request_resubmission", true
	}
	return "", false
}
