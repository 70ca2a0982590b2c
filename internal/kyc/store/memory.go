// Package store persists applications, documents and customers.
//
// Both implementations return sentinel.ErrNotFound for missing records and
// sentinel.ErrConflict for unique key violations. Neither serializes
// mutations by itself: callers wrap read-modify-write sequences in the
// service's per-application transaction boundary.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	"kycflow/internal/kyc/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/platform/sentinel"
)

// InMemory is a map-backed store with a secondary index on the webhook
// correlation key. Records are copied in and out so callers never share
// state with the store.
type InMemory struct {
	mu           sync.RWMutex
	applications map[id.ApplicationID]*models.Application
	byProvider   map[string]id.ApplicationID
	documents    map[id.ApplicationID][]*models.Document
	customers    map[id.CustomerID]*models.Customer
	emails       map[string]id.CustomerID
}

func NewInMemory() *InMemory {
	return &InMemory{
		applications: make(map[id.ApplicationID]*models.Application),
		byProvider:   make(map[string]id.ApplicationID),
		documents:    make(map[id.ApplicationID][]*models.Document),
		customers:    make(map[id.CustomerID]*models.Customer),
		emails:       make(map[string]id.CustomerID),
	}
}

func (s *InMemory) FindByID(_ context.Context, appID id.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.applications[appID]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	return cloneApplication(app), nil
}

func (s *InMemory) Save(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[app.CustomerID]; !ok {
		return fmt.Errorf("customer %s: %w", app.CustomerID, sentinel.ErrNotFound)
	}
	if owner, ok := s.byProvider[app.ProviderApplicantID]; ok && owner != app.ID {
		return fmt.Errorf("provider applicant id already in use: %w", sentinel.ErrConflict)
	}
	if prev, ok := s.applications[app.ID]; ok && prev.ProviderApplicantID != app.ProviderApplicantID {
		delete(s.byProvider, prev.ProviderApplicantID)
	}
	s.applications[app.ID] = cloneApplication(app)
	s.byProvider[app.ProviderApplicantID] = app.ID
	return nil
}

func (s *InMemory) FindByProviderApplicantID(_ context.Context, key string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	appID, ok := s.byProvider[key]
	if !ok {
		return nil, fmt.Errorf("provider applicant %q: %w", key, sentinel.ErrNotFound)
	}
	return cloneApplication(s.applications[appID]), nil
}

func (s *InMemory) FindByStatus(_ context.Context, status models.Status) ([]*models.Application, error) {
	return s.filter(func(a *models.Application) bool { return a.Status == status }), nil
}

func (s *InMemory) FindByCustomer(_ context.Context, customerID id.CustomerID) ([]*models.Application, error) {
	return s.filter(func(a *models.Application) bool { return a.CustomerID == customerID }), nil
}

// FindReviewQueue returns cases awaiting human action in one pass.
func (s *InMemory) FindReviewQueue(_ context.Context) ([]*models.Application, error) {
	return s.filter((*models.Application).InReviewQueue), nil
}

func (s *InMemory) FindAll(_ context.Context) ([]*models.Application, error) {
	return s.filter(func(*models.Application) bool { return true }), nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for _, a := range s.applications {
		counts[a.Status]++
	}
	return counts, nil
}

// filter returns matching applications, newest first.
func (s *InMemory) filter(keep func(*models.Application) bool) []*models.Application {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Application, 0)
	for _, a := range s.applications {
		if keep(a) {
			out = append(out, cloneApplication(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *InMemory) SaveDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applications[doc.ApplicationID]; !ok {
		return fmt.Errorf("application %s: %w", doc.ApplicationID, sentinel.ErrNotFound)
	}
	d := *doc
	s.documents[doc.ApplicationID] = append(s.documents[doc.ApplicationID], &d)
	return nil
}

func (s *InMemory) ListDocuments(_ context.Context, appID id.ApplicationID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.documents[appID]
	out := make([]*models.Document, 0, len(docs))
	for _, d := range docs {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func (s *InMemory) SaveCustomer(_ context.Context, c *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.emails[c.Email]; ok && owner != c.ID {
		return fmt.Errorf("customer email already registered: %w", sentinel.ErrConflict)
	}
	if prev, ok := s.customers[c.ID]; ok && prev.Email != c.Email {
		delete(s.emails, prev.Email)
	}
	cp := *c
	s.customers[c.ID] = &cp
	s.emails[c.Email] = c.ID
	return nil
}

func (s *InMemory) FindCustomer(_ context.Context, customerID id.CustomerID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) ListCustomers(_ context.Context) ([]*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func cloneApplication(a *models.Application) *models.Application {
	c := *a
	if a.RiskScore != nil {
		score := *a.RiskScore
		c.RiskScore = &score
	}
	if a.ReviewedAt != nil {
		at := *a.ReviewedAt
		c.ReviewedAt = &at
	}
	c.RiskLabels = slices.Clone(a.RiskLabels)
	c.AgentReport = cloneRaw(a.AgentReport)
	c.AdverseMediaSources = cloneRaw(a.AdverseMediaSources)
	c.SubChecks = models.SubCheckResults{
		DocumentCheck:   cloneRaw(a.SubChecks.DocumentCheck),
		EmploymentCheck: cloneRaw(a.SubChecks.EmploymentCheck),
		ExternalSearch:  cloneRaw(a.SubChecks.ExternalSearch),
		WealthCheck:     cloneRaw(a.SubChecks.WealthCheck),
		SanctionsScreen: cloneRaw(a.SubChecks.SanctionsScreen),
	}
	return &c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return slices.Clone(raw)
}
