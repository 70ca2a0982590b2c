package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"kycflow/internal/kyc/agent"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/risk"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/requestcontext"
)

const (
	noteAgentFailed       = "Agent Analysis Failed: "
	noteAggregationFailed = "Risk Aggregation Failed: "
	failureAggregation    = "aggregation"
)

// SubmitApplication moves the case to SUBMITTED, screens it synchronously and
// commits the outcome. Agent and aggregation failures are absorbed: the case
// lands in UNDER_REVIEW with a diagnostic note and the call still succeeds.
func (s *Service) SubmitApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	ctx, span := s.startSpan(ctx, "kyc.SubmitApplication", attribute.String("application_id", appID.String()))

	var (
		result *models.Application
		events []models.LifecycleEvent
	)
	err := s.tx.RunInTx(ctx, appID, func(ctx context.Context, st Store) error {
		app, err := st.FindByID(ctx, appID)
		if err != nil {
			return storeErr(err, "application")
		}
		if err := app.CanSubmit(); err != nil {
			return err
		}
		req, err := s.screeningRequest(ctx, st, app)
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		from := app.Status
		app.ApplySubmission(now)
		if err := st.Save(ctx, app); err != nil {
			return storeErr(err, "application")
		}
		events = append(events, transitionEvent(app, from, models.SourceSubmission, now))

		if err := s.screen(ctx, app, req, now); err != nil {
			return err
		}
		if err := st.Save(ctx, app); err != nil {
			return storeErr(err, "application")
		}
		events = append(events, transitionEvent(app, models.StatusSubmitted, models.SourceSubmission, now))
		result = app
		return nil
	})
	if err == nil {
		span.SetAttributes(attribute.String("status", string(result.Status)))
	}
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events...)
	return result, nil
}

// screen calls the agent and applies the result or the absorbed failure.
func (s *Service) screen(ctx context.Context, app *models.Application, req models.ScreeningRequest, now time.Time) error {
	agentCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.agent.Analyze(agentCtx, req)
	if err != nil {
		s.metrics.ObserveScreening("failed", time.Since(start))
		category := string(agent.Category(err))
		s.metrics.IncrementScreeningFailure(category)
		s.logger.WarnContext(ctx, "agent screening failed",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", app.ID.String(),
			"category", category,
			"error", err,
		)
		return app.ApplyScreeningFailure(noteAgentFailed+err.Error(), now)
	}
	s.metrics.ObserveScreening("ok", time.Since(start))

	assessment, err := risk.Aggregate(report.Details)
	if err != nil {
		s.metrics.IncrementScreeningFailure(failureAggregation)
		s.logger.WarnContext(ctx, "risk aggregation failed",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", app.ID.String(),
			"error", err,
		)
		app.AssignCaseID(report.CaseID)
		return app.ApplyScreeningFailure(noteAggregationFailed+err.Error(), now)
	}

	outcome := s.policy.Decide(report)
	if err := app.ApplyScreeningResult(report, assessment, outcome, now); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply screening result")
	}
	return nil
}

func (s *Service) screeningRequest(ctx context.Context, st Store, app *models.Application) (models.ScreeningRequest, error) {
	customer, err := st.FindCustomer(ctx, app.CustomerID)
	if err != nil {
		return models.ScreeningRequest{}, storeErr(err, "customer")
	}
	docs, err := st.ListDocuments(ctx, app.ID)
	if err != nil {
		return models.ScreeningRequest{}, storeErr(err, "documents")
	}
	urls := make([]string, 0, len(docs))
	for _, d := range docs {
		urls = append(urls, d.FileURL)
	}
	return models.ScreeningRequest{
		CustomerID:   customer.ID,
		FullName:     customer.FullName(),
		NationalID:   customer.NationalID,
		DocumentURLs: urls,
		LinkedinURL:  customer.LinkedinURL,
		CompanyName:  customer.CompanyName,
	}, nil
}

// QuickAssess asks the agent for a lightweight pre-screen of the case as it
// stands. The case is not modified.
func (s *Service) QuickAssess(ctx context.Context, appID id.ApplicationID) (agent.QuickAssessment, error) {
	app, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return agent.QuickAssessment{}, storeErr(err, "application")
	}
	req, err := s.screeningRequest(ctx, s.store, app)
	if err != nil {
		return agent.QuickAssessment{}, err
	}
	agentCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()
	qa, err := s.agent.QuickAssess(agentCtx, req)
	if err != nil {
		return agent.QuickAssessment{}, agentErr(err)
	}
	return qa, nil
}

func (s *Service) AgentHealth(ctx context.Context) (agent.Health, error) {
	h, err := s.agent.Health(ctx)
	if err != nil {
		return agent.Health{}, agentErr(err)
	}
	return h, nil
}

func (s *Service) AgentInfo(ctx context.Context) (agent.Info, error) {
	info, err := s.agent.Info(ctx)
	if err != nil {
		return agent.Info{}, agentErr(err)
	}
	return info, nil
}

func agentErr(err error) error {
	if agent.Category(err) == agent.ErrorTimeout {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "screening agent timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, "screening agent unavailable")
}
