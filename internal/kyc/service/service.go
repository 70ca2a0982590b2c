// Package service orchestrates the verification lifecycle: case intake,
// screening, human review and inbound provider events.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kycflow/internal/kyc/agent"
	"kycflow/internal/kyc/lifecycle"
	"kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/webhook"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/sentinel"
	"kycflow/pkg/requestcontext"
)

const (
	tracerName          = "kycflow/internal/kyc/service"
	defaultAgentTimeout = 30 * time.Second
)

// Store persists cases, their documents and customers.
type Store interface {
	FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	Save(ctx context.Context, app *models.Application) error
	FindByProviderApplicantID(ctx context.Context, key string) (*models.Application, error)
	FindByStatus(ctx context.Context, status models.Status) ([]*models.Application, error)
	FindByCustomer(ctx context.Context, customerID id.CustomerID) ([]*models.Application, error)
	FindReviewQueue(ctx context.Context) ([]*models.Application, error)
	FindAll(ctx context.Context) ([]*models.Application, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)

	SaveDocument(ctx context.Context, doc *models.Document) error
	ListDocuments(ctx context.Context, appID id.ApplicationID) ([]*models.Document, error)

	SaveCustomer(ctx context.Context, c *models.Customer) error
	FindCustomer(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)
}

// CaseStoreTx serializes read-modify-write sequences on one application.
// Operations on different applications never wait on each other.
type CaseStoreTx interface {
	RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context, store Store) error) error
}

// AgentGateway is the external screening agent.
type AgentGateway interface {
	Analyze(ctx context.Context, req models.ScreeningRequest) (models.ScreeningReport, error)
	QuickAssess(ctx context.Context, req models.ScreeningRequest) (agent.QuickAssessment, error)
	Health(ctx context.Context) (agent.Health, error)
	Info(ctx context.Context) (agent.Info, error)
}

// DocumentStorage keeps uploaded bytes and returns a fetchable locator.
type DocumentStorage interface {
	Store(ctx context.Context, fileName, contentType string, data []byte) (string, error)
}

// EventPublisher receives committed lifecycle changes. Publish must not block.
type EventPublisher interface {
	Publish(ctx context.Context, event models.LifecycleEvent)
}

// ReplayGuard remembers applied webhook bodies.
type ReplayGuard interface {
	Seen(ctx context.Context, body []byte) (bool, error)
	Remember(ctx context.Context, body []byte) (bool, error)
}

type Service struct {
	store   Store
	tx      CaseStoreTx
	agent   AgentGateway
	storage DocumentStorage

	events           EventPublisher
	replay           ReplayGuard
	verifier         *webhook.Verifier
	requireSignature bool
	policy           lifecycle.ScreeningPolicy
	agentTimeout     time.Duration

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithReplayGuard(g ReplayGuard) Option {
	return func(s *Service) { s.replay = g }
}

func WithPolicy(p lifecycle.ScreeningPolicy) Option {
	return func(s *Service) { s.policy = p }
}

func WithAgentTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.agentTimeout = d
		}
	}
}

// WithWebhookAuth sets the shared secret. When requireSignature is false a
// delivery without a signature is accepted; a wrong signature never is.
func WithWebhookAuth(secret string, requireSignature bool) Option {
	return func(s *Service) {
		s.verifier = webhook.NewVerifier(secret)
		s.requireSignature = requireSignature
	}
}

func New(store Store, tx CaseStoreTx, gateway AgentGateway, storage DocumentStorage, opts ...Option) *Service {
	s := &Service{
		store:            store,
		tx:               tx,
		agent:            gateway,
		storage:          storage,
		verifier:         webhook.NewVerifier(""),
		requireSignature: true,
		policy:           lifecycle.DefaultScreeningPolicy(),
		agentTimeout:     defaultAgentTimeout,
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	span.End()
}

// publish hands committed transitions to subscribers and counts them.
func (s *Service) publish(ctx context.Context, events ...models.LifecycleEvent) {
	for _, e := range events {
		s.metrics.IncrementTransition(string(e.From), string(e.To), string(e.Source))
		s.logger.InfoContext(ctx, "application transitioned",
			"request_id", requestcontext.RequestID(ctx),
			"application_id", e.ApplicationID.String(),
			"from", string(e.From),
			"to", string(e.To),
			"source", string(e.Source),
		)
		if s.events != nil {
			s.events.Publish(ctx, e)
		}
	}
}

func transitionEvent(app *models.Application, from models.Status, source models.EventSource, at time.Time) models.LifecycleEvent {
	return models.LifecycleEvent{
		ApplicationID: app.ID,
		CustomerID:    app.CustomerID,
		From:          from,
		To:            app.Status,
		Source:        source,
		OccurredAt:    at,
	}
}

// storeErr maps store failures onto domain codes. Domain errors pass through.
func storeErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrDuplicate):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
	}
}
