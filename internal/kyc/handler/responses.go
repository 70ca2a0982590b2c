package handler

import (
	"encoding/json"
	"time"

	"kycflow/internal/kyc/models"
)

type CustomerResponse struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name,omitempty"`
	Email       string    `json:"email"`
	DateOfBirth string    `json:"date_of_birth,omitempty"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	NationalID  string    `json:"national_id,omitempty"`
	Address     string    `json:"address,omitempty"`
	Occupation  string    `json:"occupation,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	LinkedinURL string    `json:"linkedin_url,omitempty"`
	Citizenship string    `json:"citizenship,omitempty"`
	RiskLevel   string    `json:"risk_level,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func FromCustomer(c *models.Customer) CustomerResponse {
	resp := CustomerResponse{
		ID:          c.ID.String(),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		NationalID:  c.NationalID,
		Address:     c.Address,
		Occupation:  c.Occupation,
		CompanyName: c.CompanyName,
		LinkedinURL: c.LinkedinURL,
		Citizenship: c.Citizenship,
		RiskLevel:   c.RiskLevel,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.DateOfBirth != nil {
		resp.DateOfBirth = c.DateOfBirth.Format(time.DateOnly)
	}
	return resp
}

func FromCustomers(cs []*models.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromCustomer(c))
	}
	return out
}

// SubChecksResponse carries the per-check blobs as the agent reported them.
type SubChecksResponse struct {
	DocumentCheck   json.RawMessage `json:"document_check,omitempty"`
	EmploymentCheck json.RawMessage `json:"employment_check,omitempty"`
	ExternalSearch  json.RawMessage `json:"external_search,omitempty"`
	WealthCheck     json.RawMessage `json:"wealth_check,omitempty"`
	SanctionsScreen json.RawMessage `json:"sanctions_screen,omitempty"`
}

type ApplicationResponse struct {
	ID                   string             `json:"id"`
	CustomerID           string             `json:"customer_id"`
	Status               string             `json:"status"`
	RiskScore            *int               `json:"risk_score"`
	RiskLabels           []string           `json:"risk_labels"`
	RequiresManualReview bool               `json:"requires_manual_review"`
	PEPMatch             bool               `json:"pep_match"`
	SanctionsMatch       bool               `json:"sanctions_match"`
	AdverseMediaFound    bool               `json:"adverse_media_found"`
	AdminComments        string             `json:"admin_comments,omitempty"`
	RejectionReason      string             `json:"rejection_reason,omitempty"`
	CaseID               string             `json:"case_id,omitempty"`
	ProviderApplicantID  string             `json:"provider_applicant_id"`
	AgentReport          json.RawMessage    `json:"agent_report,omitempty"`
	SubChecks            *SubChecksResponse `json:"sub_checks,omitempty"`
	AdverseMediaSources  json.RawMessage    `json:"adverse_media_sources,omitempty"`
	ReviewedBy           string             `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time         `json:"reviewed_at,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

func FromApplication(a *models.Application) ApplicationResponse {
	labels := a.RiskLabels
	if labels == nil {
		labels = []string{}
	}
	resp := ApplicationResponse{
		ID:                   a.ID.String(),
		CustomerID:           a.CustomerID.String(),
		Status:               a.Status.String(),
		RiskScore:            a.RiskScore,
		RiskLabels:           labels,
		RequiresManualReview: a.RequiresManualReview,
		PEPMatch:             a.PEPMatch,
		SanctionsMatch:       a.SanctionsMatch,
		AdverseMediaFound:    a.AdverseMediaFound,
		AdminComments:        a.AdminComments,
		RejectionReason:      a.RejectionReason,
		CaseID:               a.CaseID,
		ProviderApplicantID:  a.ProviderApplicantID,
		AgentReport:          a.AgentReport,
		AdverseMediaSources:  a.AdverseMediaSources,
		ReviewedBy:           a.ReviewedBy,
		ReviewedAt:           a.ReviewedAt,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
	sc := a.SubChecks
	if sc.DocumentCheck != nil || sc.EmploymentCheck != nil || sc.ExternalSearch != nil ||
		sc.WealthCheck != nil || sc.SanctionsScreen != nil {
		resp.SubChecks = &SubChecksResponse{
			DocumentCheck:   sc.DocumentCheck,
			EmploymentCheck: sc.EmploymentCheck,
			ExternalSearch:  sc.ExternalSearch,
			WealthCheck:     sc.WealthCheck,
			SanctionsScreen: sc.SanctionsScreen,
		}
	}
	return resp
}

func FromApplications(apps []*models.Application) []ApplicationResponse {
	out := make([]ApplicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, FromApplication(a))
	}
	return out
}

type DocumentResponse struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	Type          string    `json:"type"`
	FileName      string    `json:"file_name"`
	FileURL       string    `json:"file_url"`
	CreatedAt     time.Time `json:"created_at"`
}

func FromDocument(d *models.Document) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID.String(),
		ApplicationID: d.ApplicationID.String(),
		Type:          string(d.Type),
		FileName:      d.FileName,
		FileURL:       d.FileURL,
		CreatedAt:     d.CreatedAt,
	}
}

func FromDocuments(docs []*models.Document) []DocumentResponse {
	out := make([]DocumentResponse, 0, len(docs))
	for _, d := range docs {
		out = append(out, FromDocument(d))
	}
	return out
}

// SummaryResponse is the analytics view. The average is serialized as a
// JSON number with two decimals.
type SummaryResponse struct {
	Total               int            `json:"total"`
	ByStatus            map[string]int `json:"by_status"`
	Approved            int            `json:"approved"`
	Rejected            int            `json:"rejected"`
	UnderReview         int            `json:"under_review"`
	PendingManualReview int            `json:"pending_manual_review"`
	PEPMatches          int            `json:"pep_matches"`
	SanctionsMatches    int            `json:"sanctions_matches"`
	AdverseMediaCases   int            `json:"adverse_media_cases"`
	AverageRiskScore    json.Number    `json:"average_risk_score"`
}

func FromSummary(s models.Summary) SummaryResponse {
	byStatus := make(map[string]int, len(s.ByStatus))
	for st, n := range s.ByStatus {
		byStatus[st.String()] = n
	}
	return SummaryResponse{
		Total:               s.Total,
		ByStatus:            byStatus,
		Approved:            s.Approved,
		Rejected:            s.Rejected,
		UnderReview:         s.UnderReview,
		PendingManualReview: s.PendingManualReview,
		PEPMatches:          s.PEPMatches,
		SanctionsMatches:    s.SanctionsMatches,
		AdverseMediaCases:   s.AdverseMediaCases,
		AverageRiskScore:    json.Number(s.AverageRiskScore.StringFixed(2)),
	}
}
