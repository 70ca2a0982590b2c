package handler

import (
	"strings"
	"time"

	"kycflow/internal/kyc/models"
	dErrors "kycflow/pkg/domain-errors"
)

// CreateCustomerRequest is the body of POST /customers.
type CreateCustomerRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	NationalID  string `json:"national_id,omitempty"`
	Address     string `json:"address,omitempty"`
	Occupation  string `json:"occupation,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	LinkedinURL string `json:"linkedin_url,omitempty"`
	Citizenship string `json:"citizenship,omitempty"`

	dob *time.Time
}

// Validate parses the optional date of birth. Field rules live on the model.
func (r *CreateCustomerRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if dob := strings.TrimSpace(r.DateOfBirth); dob != "" {
		t, err := time.Parse(time.DateOnly, dob)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "date_of_birth must be YYYY-MM-DD")
		}
		r.dob = &t
	}
	return nil
}

// Profile converts the request into the model input.
func (r *CreateCustomerRequest) Profile() models.CustomerProfile {
	return models.CustomerProfile{
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		DateOfBirth: r.dob,
		PhoneNumber: r.PhoneNumber,
		NationalID:  r.NationalID,
		Address:     r.Address,
		Occupation:  r.Occupation,
		CompanyName: r.CompanyName,
		LinkedinURL: r.LinkedinURL,
		Citizenship: r.Citizenship,
	}
}

// ReviewRequest is the body of the approve, reject and request-info routes.
// Whether Comment or Reason is mandatory depends on the action and is
// enforced by the domain guards.
type ReviewRequest struct {
	Comment string `json:"comment,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (r *ReviewRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Comment = strings.TrimSpace(r.Comment)
	r.Reason = strings.TrimSpace(r.Reason)
	return nil
}
