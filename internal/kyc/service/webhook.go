package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"kycflow/internal/kyc/lifecycle"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/risk"
	"kycflow/internal/kyc/webhook"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/requestcontext"
)

// WebhookOutcome labels how a delivery was handled.
type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookUnchanged WebhookOutcome = "unchanged"
	WebhookReplayed  WebhookOutcome = "replayed"
)

// ProcessWebhook authenticates a raw delivery and applies it to the case it
// names. Exact redeliveries and deliveries that match the stored state are
// acknowledged without side effects. Details that cannot be aggregated send
// the case to manual review instead of failing the delivery.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	ctx, span := s.startSpan(ctx, "kyc.ProcessWebhook")
	outcome, err := s.processWebhook(ctx, body, signature)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	endSpan(span, err)

	if err != nil {
		s.metrics.IncrementWebhook(webhookFailureLabel(err))
		s.logger.WarnContext(ctx, "webhook rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return "", err
	}
	s.metrics.IncrementWebhook(string(outcome))
	return outcome, nil
}

func (s *Service) processWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	if err := s.authenticate(body, signature); err != nil {
		return "", err
	}

	if s.replay != nil {
		seen, err := s.replay.Seen(ctx, body)
		if err != nil {
			s.logger.WarnContext(ctx, "replay guard unavailable", "error", err)
		} else if seen {
			return WebhookReplayed, nil
		}
	}

	ev, err := webhook.ParseEvent(body)
	if err != nil {
		return "", err
	}
	update := models.InboundUpdate{
		Status:     lifecycle.MapInboundStatus(ev.Status),
		RiskScore:  ev.RiskScore,
		RiskLabels: ev.RiskLabels,
	}
	var aggErr error
	if len(ev.Details) > 0 && string(ev.Details) != "null" {
		assessment, err := risk.Aggregate(ev.Details)
		if err != nil {
			aggErr = err
		} else {
			update.Risk = &assessment
		}
	}

	target, err := s.store.FindByProviderApplicantID(ctx, ev.ProviderApplicantID)
	if err != nil {
		return "", storeErr(err, "application")
	}
	if aggErr != nil {
		s.metrics.IncrementScreeningFailure(failureAggregation)
		s.logger.WarnContext(ctx, "risk aggregation failed for inbound event",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", target.ID.String(),
			"error", aggErr,
		)
	}

	var (
		changed bool
		event   models.LifecycleEvent
	)
	err = s.tx.RunInTx(ctx, target.ID, func(ctx context.Context, st Store) error {
		app, err := st.FindByID(ctx, target.ID)
		if err != nil {
			return storeErr(err, "application")
		}
		from := app.Status
		now := requestcontext.Now(ctx)
		if aggErr != nil {
			changed, err = app.ApplyInboundFailure(noteAggregationFailed+aggErr.Error(), now)
		} else {
			changed, err = app.ApplyInboundEvent(update, now)
		}
		if err != nil || !changed {
			return err
		}
		if err := st.Save(ctx, app); err != nil {
			return storeErr(err, "application")
		}
		event = transitionEvent(app, from, models.SourceWebhook, now)
		return nil
	})
	if err != nil {
		return "", err
	}

	if s.replay != nil {
		if _, err := s.replay.Remember(ctx, body); err != nil {
			s.logger.WarnContext(ctx, "replay guard record failed", "error", err)
		}
	}
	if !changed {
		return WebhookUnchanged, nil
	}
	s.publish(ctx, event)
	return WebhookApplied, nil
}

func (s *Service) authenticate(body []byte, signature string) error {
	if signature == "" {
		if s.requireSignature {
			return dErrors.New(dErrors.CodeUnauthorized, "missing webhook signature")
		}
		return nil
	}
	if !s.verifier.Verify(body, signature) {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid webhook signature")
	}
	return nil
}

func webhookFailureLabel(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeBadRequest, dErrors.CodeValidation:
		return "invalid"
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeInvalidTransition, dErrors.CodeConflict:
		return "conflict"
	default:
		return "error"
	}
}
