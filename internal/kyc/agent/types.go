package agent

import "encoding/json"

type analyzeRequest struct {
	CustomerID  string   `json:"customer_id"`
	Name        string   `json:"name"`
	NIK         string   `json:"nik"`
	Files       []string `json:"files"`
	LinkedinURL string   `json:"linkedin_url,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
}

type analyzeResponse struct {
	CaseID               string          `json:"case_id"`
	RiskScore            *int            `json:"risk_score"`
	Status               string          `json:"status"`
	Reasoning            string          `json:"reasoning"`
	FoundInDB            bool            `json:"found_in_db"`
	RequiresManualReview *bool           `json:"requires_manual_review"`
	ProcessingTimeMS     *int            `json:"processing_time_ms"`
	Details              json.RawMessage `json:"details"`
}

// QuickAssessment is the agent's lightweight pre-screen.
type QuickAssessment struct {
	QuickAssessment bool     `json:"quick_assessment"`
	RiskScore       int      `json:"risk_score"`
	RiskIndicators  []string `json:"risk_indicators"`
	Recommendation  string   `json:"recommendation"`
	Message         string   `json:"message"`
}

// Health is the agent's liveness answer.
type Health struct {
	Status          string   `json:"status"`
	Service         string   `json:"service"`
	Version         string   `json:"version"`
	Timestamp       string   `json:"timestamp"`
	AgentsAvailable []string `json:"agents_available"`
}

// SubAgent describes one specialist inside the agent service.
type SubAgent struct {
	Name        string   `json:"name"`
	Model       string   `json:"model"`
	Description string   `json:"description"`
	Tools       []string `json:"tools"`
}

// Info is the agent's capability listing.
type Info struct {
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	Description string            `json:"description"`
	Agents      []SubAgent        `json:"agents"`
	Endpoints   map[string]string `json:"endpoints"`
}
