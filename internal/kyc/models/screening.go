package models

import (
	"encoding/json"

	id "kycflow/pkg/domain"
)

// ScreeningRequest is what the screening agent needs to assess one case.
type ScreeningRequest struct {
	CustomerID   id.CustomerID
	FullName     string
	NationalID   string
	DocumentURLs []string
	LinkedinURL  string
	CompanyName  string
}

// ScreeningReport is the normalized result of one screening call. It is
// transient; the fields that matter are copied onto the Application.
type ScreeningReport struct {
	CaseID               string
	RiskScore            int
	Status               string
	Reasoning            string
	FoundInDB            bool
	RequiresManualReview *bool
	ProcessingTimeMS     *int
	Details              json.RawMessage
}

// RiskAssessment holds the risk fields derived from a report's details.
// Blobs are passed through unparsed; nil means the section was absent.
type RiskAssessment struct {
	PEPMatch            bool
	SanctionsMatch      bool
	AdverseMediaFound   bool
	AdverseMediaSources json.RawMessage
	AgentReport         json.RawMessage
	SubChecks           SubCheckResults
}

// SubCheckResults are the per-check blobs reported by the agent.
type SubCheckResults struct {
	DocumentCheck   json.RawMessage
	EmploymentCheck json.RawMessage
	ExternalSearch  json.RawMessage
	WealthCheck     json.RawMessage
	SanctionsScreen json.RawMessage
}

// ScreeningOutcome is the lifecycle decision for a screening result.
type ScreeningOutcome struct {
	Status       Status
	ManualReview bool
}
