package models

import (
	"strings"

	dErrors "kycflow/pkg/domain-errors"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusDraft          Status = "DRAFT"
	StatusSubmitted      Status = "SUBMITTED"
	StatusUnderReview    Status = "UNDER_REVIEW"
	StatusActionRequired Status = "ACTION_REQUIRED"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusUnderReview,
	StatusActionRequired,
	StatusApproved,
	StatusRejected,
}

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status: "+s)
	}
	return status, nil
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusActionRequired, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports a final disposition. Terminal cases accept no further
// transitions and no further documents.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsReviewable reports whether a human reviewer may act on the case.
func (s Status) IsReviewable() bool {
	return s == StatusUnderReview || s == StatusActionRequired
}

// AcceptsDocuments reports whether uploads are allowed. SUBMITTED is excluded
// while screening is in flight.
func (s Status) AcceptsDocuments() bool {
	switch s {
	case StatusDraft, StatusUnderReview, StatusActionRequired:
		return true
	case StatusSubmitted, StatusApproved, StatusRejected:
		return false
	}
	return false
}

// Trigger names the event that drives a transition.
type Trigger string

const (
	TriggerSubmit           Trigger = "submit"
	TriggerScreeningResult  Trigger = "screening_result"
	TriggerScreeningFailure Trigger = "screening_failure"
	TriggerApprove          Trigger = "approve"
	TriggerReject           Trigger = "reject"
	TriggerRequestInfo      Trigger = "request_info"
	TriggerInboundEvent     Trigger = "inbound_event"
)

// inboundTargets are the statuses an authenticated inbound event may set.
var inboundTargets = []Status{StatusApproved, StatusRejected, StatusActionRequired, StatusUnderReview}

// allowedTargets is the transition table. Every status is handled explicitly
// so a new status cannot be added without deciding its transitions.
func allowedTargets(from Status, trigger Trigger) []Status {
	if trigger == TriggerInboundEvent && !from.IsTerminal() && from.IsValid() {
		return inboundTargets
	}
	switch from {
	case StatusDraft:
		if trigger == TriggerSubmit {
			return []Status{StatusSubmitted}
		}
	case StatusActionRequired:
		if trigger == TriggerSubmit {
			return []Status{StatusSubmitted}
		}
		return reviewTargets(trigger)
	case StatusSubmitted:
		switch trigger {
		case TriggerScreeningResult:
			return []Status{StatusApproved, StatusUnderReview}
		case TriggerScreeningFailure:
			return []Status{StatusUnderReview}
		}
	case StatusUnderReview:
		return reviewTargets(trigger)
	case StatusApproved, StatusRejected:
		return nil
	}
	return nil
}

func reviewTargets(trigger Trigger) []Status {
	switch trigger {
	case TriggerApprove:
		return []Status{StatusApproved}
	case TriggerReject:
		return []Status{StatusRejected}
	case TriggerRequestInfo:
		return []Status{StatusActionRequired}
	}
	return nil
}

// CanTransition reports whether trigger may move a case from one status to another.
func CanTransition(from Status, trigger Trigger, to Status) bool {
	for _, s := range allowedTargets(from, trigger) {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(from Status, trigger Trigger) error {
	return dErrors.New(dErrors.CodeInvalidTransition,
		"cannot "+strings.ReplaceAll(string(trigger), "_", " ")+" an application in status "+string(from))
}
