package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"kycflow/internal/kyc/models"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/requestcontext"
)

// InitiateApplication opens a DRAFT case for an existing customer.
func (s *Service) InitiateApplication(ctx context.Context, customerID id.CustomerID) (*models.Application, error) {
	if _, err := s.store.FindCustomer(ctx, customerID); err != nil {
		return nil, storeErr(err, "customer")
	}
	app, err := models.NewApplication(id.NewApplicationID(), customerID, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, app); err != nil {
		return nil, storeErr(err, "application")
	}
	s.logger.InfoContext(ctx, "application initiated",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", app.ID.String(),
		"customer_id", customerID.String(),
	)
	return app, nil
}

// Upload is one document as received from the caller.
type Upload struct {
	Type        models.DocumentType
	FileName    string
	ContentType string
	Data        []byte
}

// UploadDocument stores the bytes and attaches a document record. The status
// guard and the write happen under the application's lock.
func (s *Service) UploadDocument(ctx context.Context, appID id.ApplicationID, up Upload) (*models.Document, error) {
	if !up.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported document type")
	}
	up.FileName = strings.TrimSpace(up.FileName)
	if up.FileName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "file name is required")
	}
	if len(up.Data) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "file is empty")
	}

	ctx, span := s.startSpan(ctx, "kyc.UploadDocument", attribute.String("application_id", appID.String()))
	var doc *models.Document
	err := s.tx.RunInTx(ctx, appID, func(ctx context.Context, st Store) error {
		app, err := st.FindByID(ctx, appID)
		if err != nil {
			return storeErr(err, "application")
		}
		if err := app.CanAttachDocument(); err != nil {
			return err
		}

		locator, err := s.storage.Store(ctx, up.FileName, up.ContentType, up.Data)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeUpstream, "failed to store document")
		}
		doc = &models.Document{
			ID:            id.NewDocumentID(),
			ApplicationID: appID,
			Type:          up.Type,
			FileName:      up.FileName,
			FileURL:       locator,
			CreatedAt:     requestcontext.Now(ctx),
		}
		return storeErr(st.SaveDocument(ctx, doc), "application")
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestcontext.RequestID(ctx),
		"application_id", appID.String(),
		"document_type", string(doc.Type),
	)
	return doc, nil
}

func (s *Service) ListDocuments(ctx context.Context, appID id.ApplicationID) ([]*models.Document, error) {
	if _, err := s.store.FindByID(ctx, appID); err != nil {
		return nil, storeErr(err, "application")
	}
	docs, err := s.store.ListDocuments(ctx, appID)
	if err != nil {
		return nil, storeErr(err, "documents")
	}
	return docs, nil
}

func (s *Service) GetApplication(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	app, err := s.store.FindByID(ctx, appID)
	if err != nil {
		return nil, storeErr(err, "application")
	}
	return app, nil
}

func (s *Service) ListCustomerApplications(ctx context.Context, customerID id.CustomerID) ([]*models.Application, error) {
	if _, err := s.store.FindCustomer(ctx, customerID); err != nil {
		return nil, storeErr(err, "customer")
	}
	apps, err := s.store.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, storeErr(err, "applications")
	}
	return apps, nil
}

// ListApplications returns every case, or only those in status when it is set.
func (s *Service) ListApplications(ctx context.Context, status *models.Status) ([]*models.Application, error) {
	var (
		apps []*models.Application
		err  error
	)
	if status != nil {
		apps, err = s.store.FindByStatus(ctx, *status)
	} else {
		apps, err = s.store.FindAll(ctx)
	}
	if err != nil {
		return nil, storeErr(err, "applications")
	}
	return apps, nil
}

// ReviewQueue lists cases awaiting a human decision.
func (s *Service) ReviewQueue(ctx context.Context) ([]*models.Application, error) {
	apps, err := s.store.FindReviewQueue(ctx)
	if err != nil {
		return nil, storeErr(err, "review queue")
	}
	return apps, nil
}

func (s *Service) AnalyticsSummary(ctx context.Context) (models.Summary, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return models.Summary{}, storeErr(err, "application counts")
	}
	apps, err := s.store.FindAll(ctx)
	if err != nil {
		return models.Summary{}, storeErr(err, "applications")
	}
	return models.Summarize(counts, apps), nil
}
