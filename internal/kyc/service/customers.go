package service

import (
	"context"

	"kycflow/internal/kyc/models"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/requestcontext"
)

func (s *Service) CreateCustomer(ctx context.Context, profile models.CustomerProfile) (*models.Customer, error) {
	c, err := models.NewCustomer(id.NewCustomerID(), profile, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveCustomer(ctx, c); err != nil {
		if dErrors.HasCode(storeErr(err, "customer"), dErrors.CodeConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a customer with this email already exists")
		}
		return nil, storeErr(err, "customer")
	}
	s.logger.InfoContext(ctx, "customer created",
		"request_id", requestcontext.RequestID(ctx),
		"customer_id", c.ID.String(),
	)
	return c, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	c, err := s.store.FindCustomer(ctx, customerID)
	if err != nil {
		return nil, storeErr(err, "customer")
	}
	return c, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	out, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, storeErr(err, "customers")
	}
	return out, nil
}
