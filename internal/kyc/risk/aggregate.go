// Package risk normalizes the open-ended details of a screening report into
// the risk fields stored on an application.
package risk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"kycflow/internal/kyc/models"
)

// ErrMalformedReport marks details whose structure cannot be normalized.
var ErrMalformedReport = errors.New("malformed screening report")

// Detail keys produced by the screening agent.
const (
	keyRiskBreakdown   = "risk_breakdown"
	keyCitations       = "citations"
	keySubAgentResults = "sub_agent_results"

	keyAdverseMedia  = "adverse_media"
	keySanctionsFlag = "sanctions_flag"
	keyPEPStatus     = "pep_status"

	subDocumentChecker    = "Document_Checker"
	subResumeCrosschecker = "Resume_Crosschecker"
	subExternalSearch     = "External_Search"
	subWealthCalculator   = "Wealth_Calculator"
	subSanctionsScreener  = "Sanctions_Screener"
)

var pepStatuses = map[string]bool{
	"POTENTIAL_PEP": true,
	"CONFIRMED_PEP": true,
}

// Aggregate derives a RiskAssessment from report details.
//
// Missing sections leave their fields unset. Sections that are present
// with the wrong shape (details or risk_breakdown not an object, citations
// not an array) fail with ErrMalformedReport so the caller can route the
// case to review instead of applying a partial result.
func Aggregate(details json.RawMessage) (models.RiskAssessment, error) {
	var out models.RiskAssessment
	if isAbsent(details) {
		return out, nil
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(details, &root); err != nil {
		return models.RiskAssessment{}, fmt.Errorf("%w: details is not an object", ErrMalformedReport)
	}
	out.AgentReport = compact(details)

	if raw, ok := root[keyRiskBreakdown]; ok && !isAbsent(raw) {
		var breakdown map[string]json.RawMessage
		if err := json.Unmarshal(raw, &breakdown); err != nil {
			return models.RiskAssessment{}, fmt.Errorf("%w: %s is not an object", ErrMalformedReport, keyRiskBreakdown)
		}
		out.AdverseMediaFound = isTrue(breakdown[keyAdverseMedia])
		out.SanctionsMatch = isTrue(breakdown[keySanctionsFlag])
		out.PEPMatch = pepStatuses[stringValue(breakdown[keyPEPStatus])]
	}

	if raw, ok := root[keyCitations]; ok && !isAbsent(raw) {
		var citations []json.RawMessage
		if err := json.Unmarshal(raw, &citations); err != nil {
			return models.RiskAssessment{}, fmt.Errorf("%w: %s is not an array", ErrMalformedReport, keyCitations)
		}
		if len(citations) > 0 {
			out.AdverseMediaSources = compact(raw)
		}
	}

	if raw, ok := root[keySubAgentResults]; ok && !isAbsent(raw) {
		var subs map[string]json.RawMessage
		if err := json.Unmarshal(raw, &subs); err != nil {
			return models.RiskAssessment{}, fmt.Errorf("%w: %s is not an object", ErrMalformedReport, keySubAgentResults)
		}
		out.SubChecks = models.SubCheckResults{
			DocumentCheck:   blob(subs[subDocumentChecker]),
			EmploymentCheck: blob(subs[subResumeCrosschecker]),
			ExternalSearch:  blob(subs[subExternalSearch]),
			WealthCheck:     blob(subs[subWealthCalculator]),
			SanctionsScreen: blob(subs[subSanctionsScreener]),
		}
	}

	return out, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// isTrue accepts only the JSON literal true; any other value reads as false.
func isTrue(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("true"))
}

func stringValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func blob(raw json.RawMessage) json.RawMessage {
	if isAbsent(raw) {
		return nil
	}
	return compact(raw)
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}
