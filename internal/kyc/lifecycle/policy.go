// Package lifecycle holds the pure decision rules that pick a transition:
// the auto-approval policy for screening results and the mapping from
// provider status codes to lifecycle statuses. No I/O, no side effects.
package lifecycle

import (
	"strings"

	"kycflow/internal/kyc/models"
)

// DefaultAutoApproveMaxScore is the highest risk score eligible for auto-approval.
const DefaultAutoApproveMaxScore = 30

// ScreeningPolicy decides the outcome of a screening report.
type ScreeningPolicy struct {
	AutoApproveMaxScore int
}

func DefaultScreeningPolicy() ScreeningPolicy {
	return ScreeningPolicy{AutoApproveMaxScore: DefaultAutoApproveMaxScore}
}

// Decide auto-approves only when the agent itself reports APPROVED and the
// score is within the threshold. Either condition alone routes to review.
func (p ScreeningPolicy) Decide(report models.ScreeningReport) models.ScreeningOutcome {
	if strings.EqualFold(strings.TrimSpace(report.Status), string(models.StatusApproved)) &&
		report.RiskScore <= p.AutoApproveMaxScore {
		return models.ScreeningOutcome{Status: models.StatusApproved, ManualReview: false}
	}
	return models.ScreeningOutcome{Status: models.StatusUnderReview, ManualReview: true}
}

// MapInboundStatus maps a provider status code to a lifecycle status.
// Unknown codes route the case to human review.
func MapInboundStatus(code string) models.Status {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "GREEN", "APPROVED":
		return models.StatusApproved
	case "RED", "REJECTED":
		return models.StatusRejected
	case "RESUBMIT":
		return models.StatusActionRequired
	default:
		return models.StatusUnderReview
	}
}
