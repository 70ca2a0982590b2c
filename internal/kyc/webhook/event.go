package webhook

import (
	"bytes"
	"encoding/json"
	"strings"

	dErrors "kycflow/pkg/domain-errors"
)

// Event is a decoded inbound status update.
type Event struct {
	ProviderApplicantID string
	Status              string
	RiskScore           int
	RiskLabels          []string
	Details             json.RawMessage
}

type payload struct {
	ProviderApplicantID string          `json:"providerApplicantId"`
	Status              string          `json:"status"`
	RiskScore           *int            `json:"riskScore"`
	RiskLabels          []string        `json:"riskLabels"`
	Details             json.RawMessage `json:"details"`
}

// ParseEvent decodes and validates a raw payload. A missing score reads as 0.
func ParseEvent(body []byte) (Event, error) {
	var p payload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return Event{}, dErrors.New(dErrors.CodeBadRequest, "webhook payload is not valid JSON")
	}

	p.ProviderApplicantID = strings.TrimSpace(p.ProviderApplicantID)
	if p.ProviderApplicantID == "" {
		return Event{}, dErrors.New(dErrors.CodeValidation, "providerApplicantId is required")
	}

	score := 0
	if p.RiskScore != nil {
		score = *p.RiskScore
	}
	if score < 0 || score > 100 {
		return Event{}, dErrors.New(dErrors.CodeValidation, "riskScore must be between 0 and 100")
	}

	return Event{
		ProviderApplicantID: p.ProviderApplicantID,
		Status:              strings.ToUpper(strings.TrimSpace(p.Status)),
		RiskScore:           score,
		RiskLabels:          p.RiskLabels,
		Details:             p.Details,
	}, nil
}
