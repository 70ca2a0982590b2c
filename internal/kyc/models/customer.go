package models

import (
	"net/mail"
	"strings"
	"time"

	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
)

// Customer is the identity profile used as screening input.
//
// Invariants:
//   - FirstName and Email are non-empty
//   - Email is unique across customers (enforced by the store)
type Customer struct {
	ID          id.CustomerID
	FirstName   string
	LastName    string
	Email       string
	DateOfBirth *time.Time
	PhoneNumber string
	NationalID  string
	Address     string
	Occupation  string
	CompanyName string
	LinkedinURL string
	Citizenship string
	RiskLevel   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CustomerProfile is the caller-supplied part of a Customer.
type CustomerProfile struct {
	FirstName   string
	LastName    string
	Email       string
	DateOfBirth *time.Time
	PhoneNumber string
	NationalID  string
	Address     string
	Occupation  string
	CompanyName string
	LinkedinURL string
	Citizenship string
}

func NewCustomer(customerID id.CustomerID, p CustomerProfile, now time.Time) (*Customer, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	if p.FirstName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "first name is required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "a valid email is required")
	}
	return &Customer{
		ID:          customerID,
		FirstName:   p.FirstName,
		LastName:    strings.TrimSpace(p.LastName),
		Email:       p.Email,
		DateOfBirth: p.DateOfBirth,
		PhoneNumber: p.PhoneNumber,
		NationalID:  strings.TrimSpace(p.NationalID),
		Address:     p.Address,
		Occupation:  p.Occupation,
		CompanyName: p.CompanyName,
		LinkedinURL: p.LinkedinURL,
		Citizenship: p.Citizenship,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (c *Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
