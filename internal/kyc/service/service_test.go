package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks AgentGateway,DocumentStorage,EventPublisher,ReplayGuard

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"kycflow/internal/kyc/agent"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/service/mocks"
	"kycflow/internal/kyc/store"
	"kycflow/internal/kyc/webhook"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/requestcontext"
)

const testSecret = "webhook-secret"

type capturePublisher struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
}

func (c *capturePublisher) Publish(_ context.Context, e models.LifecycleEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *capturePublisher) all() []models.LifecycleEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.LifecycleEvent(nil), c.events...)
}

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	agent     *mocks.MockAgentGateway
	storage   *mocks.MockDocumentStorage
	store     *store.InMemory
	published *capturePublisher
	svc       *Service
	ctx       context.Context
	now       time.Time
	customer  *models.Customer
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.agent = mocks.NewMockAgentGateway(s.ctrl)
	s.storage = mocks.NewMockDocumentStorage(s.ctrl)
	s.store = store.NewInMemory()
	s.published = &capturePublisher{}
	s.svc = New(s.store, NewKeyedTx(s.store, time.Second), s.agent, s.storage,
		WithEventPublisher(s.published),
		WithWebhookAuth(testSecret, true),
		WithAgentTimeout(500*time.Millisecond),
	)
	s.now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	c, err := s.svc.CreateCustomer(s.ctx, models.CustomerProfile{
		FirstName:   "Dewi",
		LastName:    "Lestari",
		Email:       "dewi@example.com",
		NationalID:  "3174000000000001",
		CompanyName: "PT Sinar",
	})
	s.Require().NoError(err)
	s.customer = c
}

func (s *ServiceSuite) newCase() *models.Application {
	app, err := s.svc.InitiateApplication(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	return app
}

// forceStatus puts a case into a state as if earlier steps had run.
func (s *ServiceSuite) forceStatus(appID id.ApplicationID, status models.Status, manual bool) {
	app, err := s.store.FindByID(s.ctx, appID)
	s.Require().NoError(err)
	app.Status = status
	app.RequiresManualReview = manual
	s.Require().NoError(s.store.Save(s.ctx, app))
}

func (s *ServiceSuite) expectAnalyze(report models.ScreeningReport, err error) {
	s.agent.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(report, err)
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Equal(code, dErrors.CodeOf(err), err.Error())
}

func (s *ServiceSuite) TestCustomers() {
	_, err := s.svc.CreateCustomer(s.ctx, models.CustomerProfile{FirstName: "Dup", Email: "dewi@example.com"})
	s.requireCode(err, dErrors.CodeConflict)

	_, err = s.svc.CreateCustomer(s.ctx, models.CustomerProfile{Email: "x@example.com"})
	s.requireCode(err, dErrors.CodeValidation)

	got, err := s.svc.GetCustomer(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	s.Equal("Dewi Lestari", got.FullName())

	_, err = s.svc.GetCustomer(s.ctx, id.NewCustomerID())
	s.requireCode(err, dErrors.CodeNotFound)

	all, err := s.svc.ListCustomers(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *ServiceSuite) TestInitiate() {
	app := s.newCase()
	s.Equal(models.StatusDraft, app.Status)
	s.Equal("agent-session-"+app.ID.String(), app.ProviderApplicantID)
	s.Nil(app.RiskScore)

	_, err := s.svc.InitiateApplication(s.ctx, id.NewCustomerID())
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestUploadDocument() {
	app := s.newCase()
	s.storage.EXPECT().Store(gomock.Any(), "ktp.jpg", "image/jpeg", []byte("img")).Return("file:///data/x_ktp.jpg", nil)

	doc, err := s.svc.UploadDocument(s.ctx, app.ID, Upload{
		Type: models.DocumentKTPFront, FileName: "ktp.jpg", ContentType: "image/jpeg", Data: []byte("img"),
	})
	s.Require().NoError(err)
	s.Equal("file:///data/x_ktp.jpg", doc.FileURL)

	docs, err := s.svc.ListDocuments(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Len(docs, 1)

	s.Run("rejected while screening is in flight and after finalization", func() {
		for _, st := range []models.Status{models.StatusSubmitted, models.StatusApproved, models.StatusRejected} {
			s.forceStatus(app.ID, st, false)
			_, err := s.svc.UploadDocument(s.ctx, app.ID, Upload{Type: models.DocumentSelfie, FileName: "a.jpg", Data: []byte("x")})
			s.requireCode(err, dErrors.CodeInvalidTransition)
		}
	})

	s.Run("input validation", func() {
		_, err := s.svc.UploadDocument(s.ctx, app.ID, Upload{Type: "PHOTO", FileName: "a.jpg", Data: []byte("x")})
		s.requireCode(err, dErrors.CodeValidation)
		_, err = s.svc.UploadDocument(s.ctx, app.ID, Upload{Type: models.DocumentSelfie, FileName: "a.jpg"})
		s.requireCode(err, dErrors.CodeValidation)
	})

	s.Run("storage failure", func() {
		s.forceStatus(app.ID, models.StatusDraft, false)
		s.storage.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("disk full"))
		_, err := s.svc.UploadDocument(s.ctx, app.ID, Upload{Type: models.DocumentSelfie, FileName: "a.jpg", Data: []byte("x")})
		s.requireCode(err, dErrors.CodeUpstream)
	})
}

func (s *ServiceSuite) TestSubmitAutoApproves() {
	app := s.newCase()
	s.storage.EXPECT().Store(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("https://files/ktp.jpg", nil)
	_, err := s.svc.UploadDocument(s.ctx, app.ID, Upload{Type: models.DocumentKTPFront, FileName: "ktp.jpg", Data: []byte("x")})
	s.Require().NoError(err)

	s.agent.EXPECT().Analyze(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req models.ScreeningRequest) (models.ScreeningReport, error) {
			s.Equal("Dewi Lestari", req.FullName)
			s.Equal("3174000000000001", req.NationalID)
			s.Equal([]string{"https://files/ktp.jpg"}, req.DocumentURLs)
			return models.ScreeningReport{CaseID: "CASE-1", RiskScore: 20, Status: "approved", Reasoning: "clean record"}, nil
		})

	got, err := s.svc.SubmitApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.False(got.RequiresManualReview)
	s.Equal("CASE-1", got.CaseID)
	s.Require().NotNil(got.RiskScore)
	s.Equal(20, *got.RiskScore)
	s.Equal("Agent Analysis: clean record", got.AdminComments)

	events := s.published.all()
	s.Require().Len(events, 2)
	s.Equal(models.StatusDraft, events[0].From)
	s.Equal(models.StatusSubmitted, events[0].To)
	s.Equal(models.StatusSubmitted, events[1].From)
	s.Equal(models.StatusApproved, events[1].To)
	s.Equal(models.SourceSubmission, events[1].Source)
}

func (s *ServiceSuite) TestSubmitRoutesToReview() {
	tests := []struct {
		name   string
		report models.ScreeningReport
	}{
		{"score above threshold", models.ScreeningReport{RiskScore: 31, Status: "APPROVED"}},
		{"agent did not approve", models.ScreeningReport{RiskScore: 5, Status: "UNDER_REVIEW"}},
		{"agent rejected", models.ScreeningReport{RiskScore: 90, Status: "REJECTED"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			app := s.newCase()
			s.expectAnalyze(tt.report, nil)
			got, err := s.svc.SubmitApplication(s.ctx, app.ID)
			s.Require().NoError(err)
			s.Equal(models.StatusUnderReview, got.Status)
			s.True(got.RequiresManualReview)
		})
	}
}

func (s *ServiceSuite) TestSubmitRecordsRiskFields() {
	app := s.newCase()
	details := json.RawMessage(`{
		"risk_breakdown": {"adverse_media": true, "sanctions_flag": false, "pep_status": "POTENTIAL_PEP"},
		"citations": ["https://news.example/a"],
		"sub_agent_results": {"Sanctions_Screener": {"hit": false}}
	}`)
	s.expectAnalyze(models.ScreeningReport{CaseID: "CASE-9", RiskScore: 64, Status: "UNDER_REVIEW", Details: details}, nil)

	got, err := s.svc.SubmitApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.True(got.PEPMatch)
	s.True(got.AdverseMediaFound)
	s.False(got.SanctionsMatch)
	s.JSONEq(`["https://news.example/a"]`, string(got.AdverseMediaSources))
	s.JSONEq(`{"hit": false}`, string(got.SubChecks.SanctionsScreen))
	s.NotEmpty(got.AgentReport)
}

func (s *ServiceSuite) TestSubmitAbsorbsAgentFailure() {
	app := s.newCase()
	s.expectAnalyze(models.ScreeningReport{}, &agent.CallError{Category: agent.ErrorTimeout, Endpoint: "/analyze", Message: "request timed out"})

	got, err := s.svc.SubmitApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, got.Status)
	s.True(got.RequiresManualReview)
	s.Nil(got.RiskScore)
	s.True(strings.HasPrefix(got.AdminComments, "Agent Analysis Failed: "), got.AdminComments)

	stored, err := s.store.FindByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, stored.Status)
}

func (s *ServiceSuite) TestSubmitAbsorbsMalformedReport() {
	app := s.newCase()
	s.expectAnalyze(models.ScreeningReport{
		CaseID:    "CASE-7",
		RiskScore: 12,
		Status:    "APPROVED",
		Details:   json.RawMessage(`{"risk_breakdown": "not-an-object"}`),
	}, nil)

	got, err := s.svc.SubmitApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, got.Status)
	s.True(got.RequiresManualReview)
	s.Equal("CASE-7", got.CaseID)
	s.Nil(got.RiskScore)
	s.False(got.PEPMatch)
	s.Nil(got.AgentReport)
	s.True(strings.HasPrefix(got.AdminComments, "Risk Aggregation Failed: "), got.AdminComments)
}

func (s *ServiceSuite) TestSubmitGuards() {
	app := s.newCase()
	for _, st := range []models.Status{models.StatusSubmitted, models.StatusUnderReview, models.StatusApproved, models.StatusRejected} {
		s.forceStatus(app.ID, st, false)
		_, err := s.svc.SubmitApplication(s.ctx, app.ID)
		s.requireCode(err, dErrors.CodeInvalidTransition)
	}

	_, err := s.svc.SubmitApplication(s.ctx, id.NewApplicationID())
	s.requireCode(err, dErrors.CodeNotFound)

	s.Run("resubmission after an info request", func() {
		s.forceStatus(app.ID, models.StatusActionRequired, true)
		s.expectAnalyze(models.ScreeningReport{RiskScore: 10, Status: "APPROVED"}, nil)
		got, err := s.svc.SubmitApplication(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
	})
}

func (s *ServiceSuite) TestReviewActions() {
	s.Run("approve requires a reviewer", func() {
		app := s.newCase()
		s.forceStatus(app.ID, models.StatusUnderReview, true)
		_, err := s.svc.Approve(s.ctx, app.ID, " ", "looks fine")
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("approve a case under review", func() {
		app := s.newCase()
		s.forceStatus(app.ID, models.StatusUnderReview, true)
		got, err := s.svc.Approve(s.ctx, app.ID, "rina", "documents verified")
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.False(got.RequiresManualReview)
		s.Equal("rina", got.ReviewedBy)
		s.Require().NotNil(got.ReviewedAt)
		s.Equal(s.now, *got.ReviewedAt)
		s.Contains(got.AdminComments, "Manual Approval: documents verified")
	})

	s.Run("reject needs a reason", func() {
		app := s.newCase()
		s.forceStatus(app.ID, models.StatusUnderReview, true)
		_, err := s.svc.Reject(s.ctx, app.ID, "rina", "")
		s.requireCode(err, dErrors.CodeValidation)

		got, err := s.svc.Reject(s.ctx, app.ID, "rina", "forged KTP")
		s.Require().NoError(err)
		s.Equal(models.StatusRejected, got.Status)
		s.Equal("forged KTP", got.RejectionReason)
	})

	s.Run("request info keeps the case in the queue", func() {
		app := s.newCase()
		s.forceStatus(app.ID, models.StatusUnderReview, true)
		_, err := s.svc.RequestInfo(s.ctx, app.ID, "rina", "")
		s.requireCode(err, dErrors.CodeValidation)

		got, err := s.svc.RequestInfo(s.ctx, app.ID, "rina", "upload a clearer selfie")
		s.Require().NoError(err)
		s.Equal(models.StatusActionRequired, got.Status)
		s.True(got.RequiresManualReview)
		s.Contains(got.AdminComments, "Additional Info Requested: upload a clearer selfie")

		queue, err := s.svc.ReviewQueue(s.ctx)
		s.Require().NoError(err)
		found := false
		for _, a := range queue {
			found = found || a.ID == app.ID
		}
		s.True(found)
	})

	s.Run("draft and finalized cases cannot be reviewed", func() {
		app := s.newCase()
		_, err := s.svc.Approve(s.ctx, app.ID, "rina", "")
		s.requireCode(err, dErrors.CodeInvalidTransition)

		s.forceStatus(app.ID, models.StatusRejected, false)
		_, err = s.svc.Approve(s.ctx, app.ID, "rina", "")
		s.requireCode(err, dErrors.CodeInvalidTransition)
	})
}

func (s *ServiceSuite) webhookBody(key, status string, score int, labels ...string) []byte {
	body, err := json.Marshal(map[string]any{
		"providerApplicantId": key,
		"status":              status,
		"riskScore":           score,
		"riskLabels":          labels,
	})
	s.Require().NoError(err)
	return body
}

func (s *ServiceSuite) sign(body []byte) string {
	return webhook.NewVerifier(testSecret).Sign(body)
}

func (s *ServiceSuite) TestWebhook() {
	app := s.newCase()
	s.forceStatus(app.ID, models.StatusUnderReview, true)

	s.Run("unsigned and mis-signed deliveries are rejected", func() {
		body := s.webhookBody(app.ProviderApplicantID, "GREEN", 10)
		_, err := s.svc.ProcessWebhook(s.ctx, body, "")
		s.requireCode(err, dErrors.CodeUnauthorized)
		_, err = s.svc.ProcessWebhook(s.ctx, body, webhook.NewVerifier("other").Sign(body))
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("unknown correlation key", func() {
		body := s.webhookBody("agent-session-unknown", "GREEN", 10)
		_, err := s.svc.ProcessWebhook(s.ctx, body, s.sign(body))
		s.requireCode(err, dErrors.CodeNotFound)
	})

	body := s.webhookBody(app.ProviderApplicantID, "green", 12, "low_risk")
	s.Run("applies a signed delivery", func() {
		outcome, err := s.svc.ProcessWebhook(s.ctx, body, "sha256="+s.sign(body))
		s.Require().NoError(err)
		s.Equal(WebhookApplied, outcome)

		got, err := s.svc.GetApplication(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.Equal(12, *got.RiskScore)
		s.Equal([]string{"low_risk"}, got.RiskLabels)
		s.False(got.RequiresManualReview)

		events := s.published.all()
		s.Require().NotEmpty(events)
		s.Equal(models.SourceWebhook, events[len(events)-1].Source)
	})

	s.Run("identical redelivery to a terminal case is a no-op", func() {
		before := len(s.published.all())
		outcome, err := s.svc.ProcessWebhook(s.ctx, body, s.sign(body))
		s.Require().NoError(err)
		s.Equal(WebhookUnchanged, outcome)
		s.Len(s.published.all(), before)
	})

	s.Run("conflicting delivery to a terminal case changes nothing", func() {
		red := s.webhookBody(app.ProviderApplicantID, "RED", 95)
		_, err := s.svc.ProcessWebhook(s.ctx, red, s.sign(red))
		s.requireCode(err, dErrors.CodeInvalidTransition)

		got, err := s.svc.GetApplication(s.ctx, app.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, got.Status)
		s.Equal(12, *got.RiskScore)
	})

	s.Run("invalid payload", func() {
		bad := []byte(`{"status":"GREEN"}`)
		_, err := s.svc.ProcessWebhook(s.ctx, bad, s.sign(bad))
		s.requireCode(err, dErrors.CodeValidation)
	})
}

func (s *ServiceSuite) TestWebhookResubmitAndUnsignedPolicy() {
	svc := New(s.store, NewKeyedTx(s.store, time.Second), s.agent, s.storage, WithWebhookAuth(testSecret, false))
	app := s.newCase()
	s.forceStatus(app.ID, models.StatusUnderReview, true)

	body := s.webhookBody(app.ProviderApplicantID, "RESUBMIT", 40)
	outcome, err := svc.ProcessWebhook(s.ctx, body, "")
	s.Require().NoError(err)
	s.Equal(WebhookApplied, outcome)

	got, err := svc.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActionRequired, got.Status)
	s.True(got.RequiresManualReview)
	s.Empty(got.RiskLabels, "absent labels clear the stored list")

	_, err = svc.ProcessWebhook(s.ctx, body, "deadbeef")
	s.requireCode(err, dErrors.CodeUnauthorized)
}

func (s *ServiceSuite) TestWebhookReplayGuard() {
	guard := mocks.NewMockReplayGuard(s.ctrl)
	svc := New(s.store, NewKeyedTx(s.store, time.Second), s.agent, s.storage,
		WithWebhookAuth(testSecret, true), WithReplayGuard(guard))
	app := s.newCase()
	s.forceStatus(app.ID, models.StatusUnderReview, true)
	body := s.webhookBody(app.ProviderApplicantID, "RED", 88)

	gomock.InOrder(
		guard.EXPECT().Seen(gomock.Any(), body).Return(false, nil),
		guard.EXPECT().Remember(gomock.Any(), body).Return(true, nil),
		guard.EXPECT().Seen(gomock.Any(), body).Return(true, nil),
	)

	outcome, err := svc.ProcessWebhook(s.ctx, body, s.sign(body))
	s.Require().NoError(err)
	s.Equal(WebhookApplied, outcome)

	outcome, err = svc.ProcessWebhook(s.ctx, body, s.sign(body))
	s.Require().NoError(err)
	s.Equal(WebhookReplayed, outcome)
}

func (s *ServiceSuite) webhookBodyWithDetails(key, status string, score int, details string) []byte {
	body, err := json.Marshal(map[string]any{
		"providerApplicantId": key,
		"status":              status,
		"riskScore":           score,
		"details":             json.RawMessage(details),
	})
	s.Require().NoError(err)
	return body
}

func (s *ServiceSuite) stored(appID id.ApplicationID) *models.Application {
	app, err := s.store.FindByID(s.ctx, appID)
	s.Require().NoError(err)
	return app
}

func (s *ServiceSuite) TestWebhookMisSignedLeavesCaseUntouched() {
	app := s.newCase()
	s.forceStatus(app.ID, models.StatusUnderReview, true)
	before := s.stored(app.ID)

	body := s.webhookBody(app.ProviderApplicantID, "GREEN", 5, "clean")
	_, err := s.svc.ProcessWebhook(s.ctx, body, webhook.NewVerifier("other-secret").Sign(body))
	s.requireCode(err, dErrors.CodeUnauthorized)

	s.Equal(before, s.stored(app.ID))
	s.Empty(s.published.all())
}

func (s *ServiceSuite) TestWebhookResubmitFromAnyOpenStatus() {
	for _, from := range []models.Status{models.StatusSubmitted, models.StatusUnderReview, models.StatusActionRequired} {
		s.Run(string(from), func() {
			app := s.newCase()
			s.forceStatus(app.ID, from, from != models.StatusSubmitted)

			body := s.webhookBody(app.ProviderApplicantID, "RESUBMIT", 45)
			outcome, err := s.svc.ProcessWebhook(s.ctx, body, s.sign(body))
			s.Require().NoError(err)
			s.Equal(WebhookApplied, outcome)

			got := s.stored(app.ID)
			s.Equal(models.StatusActionRequired, got.Status)
			s.True(got.RequiresManualReview)
			s.Equal(45, *got.RiskScore)
		})
	}
}

func (s *ServiceSuite) TestWebhookSamePayloadTwiceOnOpenCase() {
	app := s.newCase()
	s.forceStatus(app.ID, models.StatusUnderReview, true)
	details := `{"risk_breakdown":{"adverse_media":true,"pep_status":"NOT_PEP"},"sub_agent_results":{"Document_Checker":{"valid":true}}}`
	body := s.webhookBodyWithDetails(app.ProviderApplicantID, "AMBER", 62, details)

	outcome, err := s.svc.ProcessWebhook(s.ctx, body, s.sign(body))
	s.Require().NoError(err)
	s.Equal(WebhookApplied, outcome)
	first := s.stored(app.ID)
	s.Equal(models.StatusUnderReview, first.Status)
	s.True(first.AdverseMediaFound)
	published := len(s.published.all())

	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
	outcome, err = s.svc.ProcessWebhook(later, body, s.sign(body))
	s.Require().NoError(err)
	s.Equal(WebhookUnchanged, outcome)
	s.Equal(first, s.stored(app.ID))
	s.Len(s.published.all(), published)
}

func (s *ServiceSuite) TestWebhookAbsorbsMalformedDetails() {
	app := s.newCase()
	s.forceStatus(app.ID, models.StatusSubmitted, false)
	body := s.webhookBodyWithDetails(app.ProviderApplicantID, "GREEN", 10, `{"risk_breakdown":"oops"}`)

	outcome, err := s.svc.ProcessWebhook(s.ctx, body, s.sign(body))
	s.Require().NoError(err)
	s.Equal(WebhookApplied, outcome)

	got := s.stored(app.ID)
	s.Equal(models.StatusUnderReview, got.Status)
	s.True(got.RequiresManualReview)
	s.True(strings.HasPrefix(got.AdminComments, "Risk Aggregation Failed: "), got.AdminComments)
	s.Nil(got.RiskScore)
	s.Empty(got.RiskLabels)
	s.Nil(got.AgentReport)

	events := s.published.all()
	s.Require().Len(events, 1)
	s.Equal(models.SourceWebhook, events[0].Source)
	s.Equal(models.StatusSubmitted, events[0].From)
	s.Equal(models.StatusUnderReview, events[0].To)

	s.Run("redelivery adds no second note", func() {
		outcome, err := s.svc.ProcessWebhook(s.ctx, body, s.sign(body))
		s.Require().NoError(err)
		s.Equal(WebhookUnchanged, outcome)
		s.Equal(got, s.stored(app.ID))
		s.Len(s.published.all(), 1)
	})

	s.Run("terminal case rejects the delivery", func() {
		done := s.newCase()
		s.forceStatus(done.ID, models.StatusApproved, false)
		bad := s.webhookBodyWithDetails(done.ProviderApplicantID, "GREEN", 10, `{"risk_breakdown":"oops"}`)
		_, err := s.svc.ProcessWebhook(s.ctx, bad, s.sign(bad))
		s.requireCode(err, dErrors.CodeInvalidTransition)
		s.Equal(models.StatusApproved, s.stored(done.ID).Status)
	})
}

func (s *ServiceSuite) TestListingAndAnalytics() {
	a := s.newCase()
	b := s.newCase()
	s.newCase()
	s.expectAnalyze(models.ScreeningReport{RiskScore: 20, Status: "APPROVED"}, nil)
	_, err := s.svc.SubmitApplication(s.ctx, a.ID)
	s.Require().NoError(err)
	s.expectAnalyze(models.ScreeningReport{RiskScore: 55, Status: "UNDER_REVIEW"}, nil)
	_, err = s.svc.SubmitApplication(s.ctx, b.ID)
	s.Require().NoError(err)

	approved := models.StatusApproved
	list, err := s.svc.ListApplications(s.ctx, &approved)
	s.Require().NoError(err)
	s.Len(list, 1)

	all, err := s.svc.ListApplications(s.ctx, nil)
	s.Require().NoError(err)
	s.Len(all, 3)

	mine, err := s.svc.ListCustomerApplications(s.ctx, s.customer.ID)
	s.Require().NoError(err)
	s.Len(mine, 3)

	summary, err := s.svc.AnalyticsSummary(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, summary.Total)
	s.Equal(1, summary.Approved)
	s.Equal(1, summary.UnderReview)
	s.Equal(1, summary.ByStatus[models.StatusDraft])
	s.Equal("37.5", summary.AverageRiskScore.String())
}

func (s *ServiceSuite) TestAgentPassthrough() {
	s.agent.EXPECT().Health(gomock.Any()).Return(agent.Health{Status: "ok"}, nil)
	h, err := s.svc.AgentHealth(s.ctx)
	s.Require().NoError(err)
	s.Equal("ok", h.Status)

	s.agent.EXPECT().Info(gomock.Any()).Return(agent.Info{}, &agent.CallError{Category: agent.ErrorProviderOutage})
	_, err = s.svc.AgentInfo(s.ctx)
	s.requireCode(err, dErrors.CodeUpstream)

	app := s.newCase()
	s.agent.EXPECT().QuickAssess(gomock.Any(), gomock.Any()).Return(agent.QuickAssessment{QuickAssessment: true, RiskScore: 30}, nil)
	qa, err := s.svc.QuickAssess(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(30, qa.RiskScore)

	stored, err := s.svc.GetApplication(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, stored.Status)
}
