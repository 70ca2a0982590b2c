// Package handler exposes the verification workflow over HTTP.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kycflow/internal/kyc/agent"
	"kycflow/internal/kyc/models"
	"kycflow/internal/kyc/service"
	"kycflow/internal/kyc/webhook"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/httputil"
	"kycflow/pkg/platform/middleware/metadata"
	"kycflow/pkg/requestcontext"
)

const (
	// MaxUploadBytes caps a multipart document upload.
	MaxUploadBytes = 10 << 20
	// MaxWebhookBytes caps a raw webhook delivery.
	MaxWebhookBytes = 1 << 20
)

// Service is the workflow surface the handler drives.
type Service interface {
	CreateCustomer(ctx context.Context, profile models.CustomerProfile) (*models.Customer, error)
	GetCustomer(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]*models.Customer, error)

	InitiateApplication(ctx context.Context, customerID id.CustomerID) (*models.Application, error)
	UploadDocument(ctx context.Context, appID id.ApplicationID, up service.Upload) (*models.Document, error)
	ListDocuments(ctx context.Context, appID id.ApplicationID) ([]*models.Document, error)
	SubmitApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	GetApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error)
	ListCustomerApplications(ctx context.Context, customerID id.CustomerID) ([]*models.Application, error)
	ListApplications(ctx context.Context, status *models.Status) ([]*models.Application, error)
	ReviewQueue(ctx context.Context) ([]*models.Application, error)
	AnalyticsSummary(ctx context.Context) (models.Summary, error)

	Approve(ctx context.Context, appID id.ApplicationID, reviewer, comment string) (*models.Application, error)
	Reject(ctx context.Context, appID id.ApplicationID, reviewer, reason string) (*models.Application, error)
	RequestInfo(ctx context.Context, appID id.ApplicationID, reviewer, comment string) (*models.Application, error)

	QuickAssess(ctx context.Context, appID id.ApplicationID) (agent.QuickAssessment, error)
	AgentHealth(ctx context.Context) (agent.Health, error)
	AgentInfo(ctx context.Context) (agent.Info, error)

	ProcessWebhook(ctx context.Context, body []byte, signature string) (service.WebhookOutcome, error)
}

type Handler struct {
	service      Service
	logger       *slog.Logger
	reviewerAuth func(http.Handler) http.Handler
}

// New builds a handler. reviewerAuth guards the review routes; nil leaves
// them open, which is only useful in tests that inject the reviewer directly.
func New(service Service, logger *slog.Logger, reviewerAuth func(http.Handler) http.Handler) *Handler {
	return &Handler{service: service, logger: logger, reviewerAuth: reviewerAuth}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/customers", h.HandleCreateCustomer)
	r.Get("/customers", h.HandleListCustomers)
	r.Get("/customers/{customerID}", h.HandleGetCustomer)

	r.Route("/kyc", func(r chi.Router) {
		r.Post("/initiate/{customerID}", h.HandleInitiate)
		r.Get("/customer/{customerID}", h.HandleListCustomerApplications)
		r.Get("/applications", h.HandleListApplications)
		r.Get("/review-queue", h.HandleReviewQueue)
		r.Get("/analytics/summary", h.HandleAnalytics)
		r.Get("/agent/health", h.HandleAgentHealth)
		r.Get("/agent/info", h.HandleAgentInfo)

		r.Get("/{applicationID}", h.HandleGetApplication)
		r.Post("/{applicationID}/documents", h.HandleUploadDocument)
		r.Get("/{applicationID}/documents", h.HandleListDocuments)
		r.Post("/{applicationID}/submit", h.HandleSubmit)
		r.Post("/{applicationID}/quick-assessment", h.HandleQuickAssess)

		r.Group(func(r chi.Router) {
			if h.reviewerAuth != nil {
				r.Use(h.reviewerAuth)
			}
			r.Post("/{applicationID}/approve", h.HandleApprove)
			r.Post("/{applicationID}/reject", h.HandleReject)
			r.Post("/{applicationID}/request-info", h.HandleRequestInfo)
		})
	})

	r.Post("/webhooks/kyc", h.HandleWebhook)
}

func (h *Handler) HandleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateCustomerRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	c, err := h.service.CreateCustomer(ctx, req.Profile())
	if err != nil {
		h.fail(ctx, w, "create customer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromCustomer(c))
}

func (h *Handler) HandleGetCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := id.ParseCustomerID(chi.URLParam(r, "customerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.GetCustomer(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "get customer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCustomer(c))
}

func (h *Handler) HandleListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cs, err := h.service.ListCustomers(ctx)
	if err != nil {
		h.fail(ctx, w, "list customers", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCustomers(cs))
}

func (h *Handler) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := id.ParseCustomerID(chi.URLParam(r, "customerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	app, err := h.service.InitiateApplication(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "initiate application", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromApplication(app))
}

func (h *Handler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.logger.WarnContext(ctx, "failed to parse upload",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "a multipart form with a file is required"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	docType, err := models.ParseDocumentType(r.FormValue("type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read file"))
		return
	}

	doc, err := h.service.UploadDocument(ctx, appID, service.Upload{
		Type:        docType,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.fail(ctx, w, "upload document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromDocument(doc))
}

func (h *Handler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	docs, err := h.service.ListDocuments(ctx, appID)
	if err != nil {
		h.fail(ctx, w, "list documents", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocuments(docs))
}

func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.service.SubmitApplication(ctx, appID)
	if err != nil {
		h.fail(ctx, w, "submit application", err)
		return
	}

	h.logger.InfoContext(ctx, "application submitted",
		"request_id", requestID,
		"application_id", appID.String(),
		"status", app.Status.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleQuickAssess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	qa, err := h.service.QuickAssess(ctx, appID)
	if err != nil {
		h.fail(ctx, w, "quick assessment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, qa)
}

func (h *Handler) HandleGetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	app, err := h.service.GetApplication(ctx, appID)
	if err != nil {
		h.fail(ctx, w, "get application", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleListCustomerApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := id.ParseCustomerID(chi.URLParam(r, "customerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	apps, err := h.service.ListCustomerApplications(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "list customer applications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplications(apps))
}

// HandleListApplications lists every case, or the cases in one status when
// the status query parameter is set.
func (h *Handler) HandleListApplications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter *models.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter = &st
	}
	apps, err := h.service.ListApplications(ctx, filter)
	if err != nil {
		h.fail(ctx, w, "list applications", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplications(apps))
}

func (h *Handler) HandleReviewQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	apps, err := h.service.ReviewQueue(ctx)
	if err != nil {
		h.fail(ctx, w, "review queue", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromApplications(apps))
}

func (h *Handler) HandleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.service.AnalyticsSummary(ctx)
	if err != nil {
		h.fail(ctx, w, "analytics summary", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSummary(summary))
}

func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, "approve", func(ctx context.Context, appID id.ApplicationID, reviewer string, req *ReviewRequest) (*models.Application, error) {
		return h.service.Approve(ctx, appID, reviewer, req.Comment)
	})
}

func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, "reject", func(ctx context.Context, appID id.ApplicationID, reviewer string, req *ReviewRequest) (*models.Application, error) {
		return h.service.Reject(ctx, appID, reviewer, req.Reason)
	})
}

func (h *Handler) HandleRequestInfo(w http.ResponseWriter, r *http.Request) {
	h.handleReview(w, r, "request info", func(ctx context.Context, appID id.ApplicationID, reviewer string, req *ReviewRequest) (*models.Application, error) {
		return h.service.RequestInfo(ctx, appID, reviewer, req.Comment)
	})
}

type reviewFunc func(ctx context.Context, appID id.ApplicationID, reviewer string, req *ReviewRequest) (*models.Application, error)

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request, op string, fn reviewFunc) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	appID, ok := applicationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReviewRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	reviewer := requestcontext.Reviewer(ctx)
	app, err := fn(ctx, appID, reviewer, req)
	if err != nil {
		h.fail(ctx, w, op, err)
		return
	}

	h.logger.InfoContext(ctx, "review action applied",
		"request_id", requestID,
		"action", op,
		"application_id", appID.String(),
		"reviewer", reviewer,
		"client_ip", metadata.FromContext(ctx).IP,
		"status", app.Status.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromApplication(app))
}

func (h *Handler) HandleAgentHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	health, err := h.service.AgentHealth(ctx)
	if err != nil {
		h.fail(ctx, w, "agent health", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) HandleAgentInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.service.AgentInfo(ctx)
	if err != nil {
		h.fail(ctx, w, "agent info", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, info)
}

// HandleWebhook reads the raw delivery, since the signature covers the exact
// bytes, and answers 200 with an empty body once it is handled.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "payload too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read payload"))
		return
	}

	outcome, err := h.service.ProcessWebhook(ctx, body, r.Header.Get(webhook.SignatureHeader))
	if err != nil {
		h.fail(ctx, w, "process webhook", err)
		return
	}
	client := metadata.FromContext(ctx)
	h.logger.InfoContext(ctx, "webhook handled",
		"request_id", requestID,
		"outcome", string(outcome),
		"client_ip", client.IP,
		"user_agent", client.UserAgent,
	)
	w.WriteHeader(http.StatusOK)
}

func applicationID(w http.ResponseWriter, r *http.Request) (id.ApplicationID, bool) {
	appID, err := id.ParseApplicationID(chi.URLParam(r, "applicationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ApplicationID{}, false
	}
	return appID, true
}

// fail logs at a level matching the error class and writes the response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"error", err,
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInternal, dErrors.CodeInvariantViolation, dErrors.CodeUpstream, dErrors.CodeTimeout:
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	default:
		h.logger.WarnContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}
