package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"kycflow/internal/kyc/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/requestcontext"
)

// Approve finalizes a reviewable case as APPROVED.
func (s *Service) Approve(ctx context.Context, appID id.ApplicationID, reviewer, comment string) (*models.Application, error) {
	return s.review(ctx, "kyc.Approve", appID, func(app *models.Application) error {
		if err := app.CanApprove(reviewer); err != nil {
			return err
		}
		app.ApplyApproval(reviewer, comment, requestcontext.Now(ctx))
		return nil
	})
}

// Reject finalizes a reviewable case as REJECTED. reason is mandatory.
func (s *Service) Reject(ctx context.Context, appID id.ApplicationID, reviewer, reason string) (*models.Application, error) {
	return s.review(ctx, "kyc.Reject", appID, func(app *models.Application) error {
		if err := app.CanReject(reviewer, reason); err != nil {
			return err
		}
		app.ApplyRejection(reviewer, reason, requestcontext.Now(ctx))
		return nil
	})
}

// RequestInfo sends the case back to the customer. comment is mandatory.
func (s *Service) RequestInfo(ctx context.Context, appID id.ApplicationID, reviewer, comment string) (*models.Application, error) {
	return s.review(ctx, "kyc.RequestInfo", appID, func(app *models.Application) error {
		if err := app.CanRequestInfo(reviewer, comment); err != nil {
			return err
		}
		app.ApplyInfoRequest(reviewer, comment, requestcontext.Now(ctx))
		return nil
	})
}

func (s *Service) review(ctx context.Context, op string, appID id.ApplicationID, apply func(*models.Application) error) (*models.Application, error) {
	ctx, span := s.startSpan(ctx, op, attribute.String("application_id", appID.String()))

	var (
		result *models.Application
		event  models.LifecycleEvent
	)
	err := s.tx.RunInTx(ctx, appID, func(ctx context.Context, st Store) error {
		app, err := st.FindByID(ctx, appID)
		if err != nil {
			return storeErr(err, "application")
		}
		from := app.Status
		if err := apply(app); err != nil {
			return err
		}
		if err := st.Save(ctx, app); err != nil {
			return storeErr(err, "application")
		}
		event = transitionEvent(app, from, models.SourceReview, app.UpdatedAt)
		result = app
		return nil
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, event)
	return result, nil
}
