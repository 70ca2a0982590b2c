package models

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"

	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	pstrings "kycflow/pkg/platform/strings"
)

// ProviderApplicantPrefix prefixes the correlation key issued at initiation.
const ProviderApplicantPrefix = "agent-session-"

const commentSeparator = " | "

// Application is the aggregate root for one verification case.
//
// Invariants:
//   - Status is one of the six lifecycle statuses and changes only through
//     the Apply* methods below, each guarded by the transition table
//   - RequiresManualReview is false after screening only for a terminal
//     decision or an auto-approval
//   - CaseID and ProviderApplicantID are assigned once and never overwritten
//   - RiskScore is nil until a screening result or inbound event sets it
type Application struct {
	ID                   id.ApplicationID
	CustomerID           id.CustomerID
	Status               Status
	RiskScore            *int
	RiskLabels           []string
	RequiresManualReview bool
	PEPMatch             bool
	SanctionsMatch       bool
	AdverseMediaFound    bool
	AdminComments        string
	RejectionReason      string
	CaseID               string
	ProviderApplicantID  string
	AgentReport          json.RawMessage
	SubChecks            SubCheckResults
	AdverseMediaSources  json.RawMessage
	ReviewedBy           string
	ReviewedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewApplication opens a DRAFT case and issues its correlation key.
func NewApplication(appID id.ApplicationID, customerID id.CustomerID, now time.Time) (*Application, error) {
	if appID.IsNil() || customerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "application and customer IDs are required")
	}
	return &Application{
		ID:                  appID,
		CustomerID:          customerID,
		Status:              StatusDraft,
		ProviderApplicantID: ProviderApplicantPrefix + appID.String(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// CanAttachDocument checks the upload guard.
func (a *Application) CanAttachDocument() error {
	if a.Status.AcceptsDocuments() {
		return nil
	}
	if a.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidTransition, "application is finalized and accepts no further documents")
	}
	return dErrors.New(dErrors.CodeInvalidTransition, "documents cannot be attached while screening is in progress")
}

// CanSubmit checks that the case may be sent for screening.
func (a *Application) CanSubmit() error {
	if !CanTransition(a.Status, TriggerSubmit, StatusSubmitted) {
		return transitionError(a.Status, TriggerSubmit)
	}
	return nil
}

// ApplySubmission moves the case to SUBMITTED. Call CanSubmit first.
func (a *Application) ApplySubmission(now time.Time) {
	a.Status = StatusSubmitted
	a.UpdatedAt = now
}

// AssignCaseID records the agent's case id unless one is already set.
func (a *Application) AssignCaseID(caseID string) {
	if a.CaseID == "" {
		a.CaseID = caseID
	}
}

// ApplyScreeningResult copies a successful screening onto the case and
// moves it to the decided status.
func (a *Application) ApplyScreeningResult(report ScreeningReport, risk RiskAssessment, outcome ScreeningOutcome, now time.Time) error {
	if !CanTransition(a.Status, TriggerScreeningResult, outcome.Status) {
		return transitionError(a.Status, TriggerScreeningResult)
	}
	if outcome.Status == StatusUnderReview && !outcome.ManualReview {
		return dErrors.New(dErrors.CodeInvariantViolation, "cases routed to review must require manual review")
	}

	a.AssignCaseID(report.CaseID)
	score := report.RiskScore
	a.RiskScore = &score
	a.applyRisk(risk)
	if report.Reasoning != "" {
		a.AdminComments = pstrings.AppendNote(a.AdminComments, commentSeparator, "Agent Analysis: "+report.Reasoning)
	}
	a.Status = outcome.Status
	a.RequiresManualReview = outcome.ManualReview
	a.UpdatedAt = now
	return nil
}

// ApplyScreeningFailure routes the case to human review with a diagnostic note.
// No risk field is touched.
func (a *Application) ApplyScreeningFailure(note string, now time.Time) error {
	if !CanTransition(a.Status, TriggerScreeningFailure, StatusUnderReview) {
		return transitionError(a.Status, TriggerScreeningFailure)
	}
	a.AdminComments = pstrings.AppendNote(a.AdminComments, commentSeparator, note)
	a.Status = StatusUnderReview
	a.RequiresManualReview = true
	a.UpdatedAt = now
	return nil
}

func (a *Application) applyRisk(r RiskAssessment) {
	a.PEPMatch = r.PEPMatch
	a.SanctionsMatch = r.SanctionsMatch
	a.AdverseMediaFound = r.AdverseMediaFound
	a.AdverseMediaSources = r.AdverseMediaSources
	a.AgentReport = r.AgentReport
	a.SubChecks = r.SubChecks
}

// CanApprove checks the human approval guard.
func (a *Application) CanApprove(reviewer string) error {
	return a.canReview(TriggerApprove, StatusApproved, reviewer)
}

// ApplyApproval finalizes the case as APPROVED. Call CanApprove first.
func (a *Application) ApplyApproval(reviewer, comment string, now time.Time) {
	a.Status = StatusApproved
	a.RequiresManualReview = false
	a.markReviewed(reviewer, now)
	if strings.TrimSpace(comment) != "" {
		a.AdminComments = pstrings.AppendNote(a.AdminComments, commentSeparator, "Manual Approval: "+comment)
	}
}

// CanReject checks the human rejection guard. A reason is mandatory.
func (a *Application) CanReject(reviewer, reason string) error {
	if err := a.canReview(TriggerReject, StatusRejected, reviewer); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	return nil
}

// ApplyRejection finalizes the case as REJECTED. Call CanReject first.
func (a *Application) ApplyRejection(reviewer, reason string, now time.Time) {
	a.Status = StatusRejected
	a.RequiresManualReview = false
	a.RejectionReason = strings.TrimSpace(reason)
	a.markReviewed(reviewer, now)
}

// CanRequestInfo checks the info-request guard. A comment is mandatory.
func (a *Application) CanRequestInfo(reviewer, comment string) error {
	if err := a.canReview(TriggerRequestInfo, StatusActionRequired, reviewer); err != nil {
		return err
	}
	if strings.TrimSpace(comment) == "" {
		return dErrors.New(dErrors.CodeValidation, "comment is required when requesting information")
	}
	return nil
}

// ApplyInfoRequest asks the customer for more information. The case stays
// in the review queue. Call CanRequestInfo first.
func (a *Application) ApplyInfoRequest(reviewer, comment string, now time.Time) {
	a.Status = StatusActionRequired
	a.RequiresManualReview = true
	a.markReviewed(reviewer, now)
	a.AdminComments = pstrings.AppendNote(a.AdminComments, commentSeparator, "Additional Info Requested: "+comment)
}

func (a *Application) canReview(trigger Trigger, to Status, reviewer string) error {
	if strings.TrimSpace(reviewer) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "reviewer identity is required")
	}
	if !CanTransition(a.Status, trigger, to) {
		return transitionError(a.Status, trigger)
	}
	return nil
}

func (a *Application) markReviewed(reviewer string, now time.Time) {
	a.ReviewedBy = reviewer
	reviewedAt := now
	a.ReviewedAt = &reviewedAt
	a.UpdatedAt = now
}

// InboundUpdate is the state an authenticated webhook delivery asks for.
// Risk is nil when the delivery carried no details.
type InboundUpdate struct {
	Status     Status
	RiskScore  int
	RiskLabels []string
	Risk       *RiskAssessment
}

// ApplyInboundEvent overwrites status, score and labels from an inbound event.
// It reports whether anything changed. Redelivering an already applied event
// to a terminal case is a no-op; any other change to a terminal case fails.
func (a *Application) ApplyInboundEvent(u InboundUpdate, now time.Time) (bool, error) {
	if !u.Status.IsValid() {
		return false, dErrors.New(dErrors.CodeValidation, "inbound status is not a lifecycle status")
	}
	if a.matchesInbound(u) {
		return false, nil
	}
	if !CanTransition(a.Status, TriggerInboundEvent, u.Status) {
		return false, transitionError(a.Status, TriggerInboundEvent)
	}

	score := u.RiskScore
	a.RiskScore = &score
	a.RiskLabels = slices.Clone(u.RiskLabels)
	if u.Risk != nil {
		a.applyRisk(*u.Risk)
	}
	a.Status = u.Status
	a.RequiresManualReview = !u.Status.IsTerminal()
	a.UpdatedAt = now
	return true, nil
}

// ApplyInboundFailure routes a non-terminal case to human review when an
// inbound event could not be aggregated. Risk fields are left untouched and a
// repeat of the same failure changes nothing.
func (a *Application) ApplyInboundFailure(note string, now time.Time) (bool, error) {
	if a.Status == StatusUnderReview && a.RequiresManualReview && strings.HasSuffix(a.AdminComments, strings.TrimSpace(note)) {
		return false, nil
	}
	if !CanTransition(a.Status, TriggerInboundEvent, StatusUnderReview) {
		return false, transitionError(a.Status, TriggerInboundEvent)
	}
	a.AdminComments = pstrings.AppendNote(a.AdminComments, commentSeparator, note)
	a.Status = StatusUnderReview
	a.RequiresManualReview = true
	a.UpdatedAt = now
	return true, nil
}

func (a *Application) matchesInbound(u InboundUpdate) bool {
	if a.Status != u.Status || a.RiskScore == nil || *a.RiskScore != u.RiskScore {
		return false
	}
	if !slices.Equal(a.RiskLabels, u.RiskLabels) {
		return false
	}
	if a.RequiresManualReview != !u.Status.IsTerminal() {
		return false
	}
	if u.Risk == nil {
		return true
	}
	r := u.Risk
	return a.PEPMatch == r.PEPMatch &&
		a.SanctionsMatch == r.SanctionsMatch &&
		a.AdverseMediaFound == r.AdverseMediaFound &&
		bytes.Equal(a.AdverseMediaSources, r.AdverseMediaSources) &&
		bytes.Equal(a.AgentReport, r.AgentReport) &&
		bytes.Equal(a.SubChecks.DocumentCheck, r.SubChecks.DocumentCheck) &&
		bytes.Equal(a.SubChecks.EmploymentCheck, r.SubChecks.EmploymentCheck) &&
		bytes.Equal(a.SubChecks.ExternalSearch, r.SubChecks.ExternalSearch) &&
		bytes.Equal(a.SubChecks.WealthCheck, r.SubChecks.WealthCheck) &&
		bytes.Equal(a.SubChecks.SanctionsScreen, r.SubChecks.SanctionsScreen)
}

// InReviewQueue reports membership of the derived review queue.
func (a *Application) InReviewQueue() bool {
	return a.Status == StatusUnderReview || a.RequiresManualReview
}
