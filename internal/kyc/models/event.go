package models

import (
	"time"

	id "kycflow/pkg/domain"
)

// EventSource names the path that produced a transition.
type EventSource string

const (
	SourceSubmission EventSource = "submission"
	SourceReview     EventSource = "review"
	SourceWebhook    EventSource = "webhook"
)

// LifecycleEvent is published after a committed status change.
type LifecycleEvent struct {
	ApplicationID id.ApplicationID `json:"application_id"`
	CustomerID    id.CustomerID    `json:"customer_id"`
	From          Status           `json:"from"`
	To            Status           `json:"to"`
	Source        EventSource      `json:"source"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// IsTerminal reports whether the event records a final disposition.
func (e LifecycleEvent) IsTerminal() bool {
	return e.To.IsTerminal()
}
