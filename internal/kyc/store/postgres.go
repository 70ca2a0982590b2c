package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"kycflow/internal/kyc/models"
	id "kycflow/pkg/domain"
	"kycflow/pkg/platform/sentinel"
	txcontext "kycflow/pkg/platform/tx"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres implements the store on kyc_applications, kyc_documents and
// customers. When the context carries a transaction (see pkg/platform/tx)
// every statement runs on it.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) execer(ctx context.Context) txcontext.Execer {
	return txcontext.ExecerFrom(ctx, s.db)
}

const applicationColumns = `
	id, customer_id, status, risk_score, risk_labels, requires_manual_review,
	pep_match, sanctions_match, adverse_media_found, admin_comments, rejection_reason,
	case_id, provider_applicant_id, agent_report, document_check, employment_check,
	external_search, wealth_check, sanctions_screen, adverse_media_sources,
	reviewed_by, reviewed_at, created_at, updated_at`

// LockApplication takes a row lock on the application for the rest of the
// transaction in ctx.
func (s *Postgres) LockApplication(ctx context.Context, appID id.ApplicationID) error {
	if _, ok := txcontext.From(ctx); !ok {
		return errors.New("lock application: no transaction in context")
	}
	var locked uuid.UUID
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id FROM kyc_applications WHERE id = $1 FOR UPDATE`, uuid.UUID(appID)).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock application: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, appID id.ApplicationID) (*models.Application, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM kyc_applications WHERE id = $1`, uuid.UUID(appID))
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("application %s: %w", appID, sentinel.ErrNotFound)
	}
	return app, err
}

func (s *Postgres) FindByProviderApplicantID(ctx context.Context, key string) (*models.Application, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM kyc_applications WHERE provider_applicant_id = $1`, key)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("provider applicant %q: %w", key, sentinel.ErrNotFound)
	}
	return app, err
}

func (s *Postgres) Save(ctx context.Context, a *models.Application) error {
	query := `
		INSERT INTO kyc_applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			risk_score = EXCLUDED.risk_score,
			risk_labels = EXCLUDED.risk_labels,
			requires_manual_review = EXCLUDED.requires_manual_review,
			pep_match = EXCLUDED.pep_match,
			sanctions_match = EXCLUDED.sanctions_match,
			adverse_media_found = EXCLUDED.adverse_media_found,
			admin_comments = EXCLUDED.admin_comments,
			rejection_reason = EXCLUDED.rejection_reason,
			case_id = EXCLUDED.case_id,
			agent_report = EXCLUDED.agent_report,
			document_check = EXCLUDED.document_check,
			employment_check = EXCLUDED.employment_check,
			external_search = EXCLUDED.external_search,
			wealth_check = EXCLUDED.wealth_check,
			sanctions_screen = EXCLUDED.sanctions_screen,
			adverse_media_sources = EXCLUDED.adverse_media_sources,
			reviewed_by = EXCLUDED.reviewed_by,
			reviewed_at = EXCLUDED.reviewed_at,
			updated_at = EXCLUDED.updated_at
	`
	labels := a.RiskLabels
	if labels == nil {
		labels = []string{}
	}
	var score any
	if a.RiskScore != nil {
		score = *a.RiskScore
	}
	var reviewedAt any
	if a.ReviewedAt != nil {
		reviewedAt = *a.ReviewedAt
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(a.ID),
		uuid.UUID(a.CustomerID),
		string(a.Status),
		score,
		pq.Array(labels),
		a.RequiresManualReview,
		a.PEPMatch,
		a.SanctionsMatch,
		a.AdverseMediaFound,
		a.AdminComments,
		a.RejectionReason,
		a.CaseID,
		a.ProviderApplicantID,
		jsonParam(a.AgentReport),
		jsonParam(a.SubChecks.DocumentCheck),
		jsonParam(a.SubChecks.EmploymentCheck),
		jsonParam(a.SubChecks.ExternalSearch),
		jsonParam(a.SubChecks.WealthCheck),
		jsonParam(a.SubChecks.SanctionsScreen),
		jsonParam(a.AdverseMediaSources),
		a.ReviewedBy,
		reviewedAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return translate(err, "save application")
	}
	return nil
}

func (s *Postgres) FindByStatus(ctx context.Context, status models.Status) ([]*models.Application, error) {
	return s.queryApplications(ctx, `WHERE status = $1`, string(status))
}

func (s *Postgres) FindByCustomer(ctx context.Context, customerID id.CustomerID) ([]*models.Application, error) {
	return s.queryApplications(ctx, `WHERE customer_id = $1`, uuid.UUID(customerID))
}

// FindReviewQueue is a single statement so a case cannot appear twice.
func (s *Postgres) FindReviewQueue(ctx context.Context) ([]*models.Application, error) {
	return s.queryApplications(ctx, `WHERE status = $1 OR requires_manual_review`, string(models.StatusUnderReview))
}

func (s *Postgres) FindAll(ctx context.Context) ([]*models.Application, error) {
	return s.queryApplications(ctx, ``)
}

func (s *Postgres) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM kyc_applications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) queryApplications(ctx context.Context, where string, args ...any) ([]*models.Application, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM kyc_applications `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanApplication(row scanner) (*models.Application, error) {
	var (
		a                                                   models.Application
		appID, customerID                                   uuid.UUID
		status                                              string
		score                                               sql.NullInt32
		labels                                              pq.StringArray
		agentReport, documentCheck, employmentCheck         []byte
		externalSearch, wealthCheck, sanctionsScreen, media []byte
		reviewedAt                                          sql.NullTime
	)
	err := row.Scan(
		&appID, &customerID, &status, &score, &labels, &a.RequiresManualReview,
		&a.PEPMatch, &a.SanctionsMatch, &a.AdverseMediaFound, &a.AdminComments, &a.RejectionReason,
		&a.CaseID, &a.ProviderApplicantID, &agentReport, &documentCheck, &employmentCheck,
		&externalSearch, &wealthCheck, &sanctionsScreen, &media,
		&a.ReviewedBy, &reviewedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan application: %w", err)
	}

	a.ID = id.ApplicationID(appID)
	a.CustomerID = id.CustomerID(customerID)
	a.Status = models.Status(status)
	if score.Valid {
		v := int(score.Int32)
		a.RiskScore = &v
	}
	if len(labels) > 0 {
		a.RiskLabels = []string(labels)
	}
	a.AgentReport = rawOrNil(agentReport)
	a.SubChecks = models.SubCheckResults{
		DocumentCheck:   rawOrNil(documentCheck),
		EmploymentCheck: rawOrNil(employmentCheck),
		ExternalSearch:  rawOrNil(externalSearch),
		WealthCheck:     rawOrNil(wealthCheck),
		SanctionsScreen: rawOrNil(sanctionsScreen),
	}
	a.AdverseMediaSources = rawOrNil(media)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		a.ReviewedAt = &t
	}
	return &a, nil
}

func (s *Postgres) SaveDocument(ctx context.Context, d *models.Document) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO kyc_documents (id, application_id, document_type, file_name, file_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(d.ID), uuid.UUID(d.ApplicationID), string(d.Type), d.FileName, d.FileURL, d.CreatedAt)
	if err != nil {
		return translate(err, "save document")
	}
	return nil
}

func (s *Postgres) ListDocuments(ctx context.Context, appID id.ApplicationID) ([]*models.Document, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, application_id, document_type, file_name, file_url, created_at
		FROM kyc_documents WHERE application_id = $1 ORDER BY created_at
	`, uuid.UUID(appID))
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Document, 0)
	for rows.Next() {
		var d models.Document
		var docID, ownerID uuid.UUID
		var docType string
		if err := rows.Scan(&docID, &ownerID, &docType, &d.FileName, &d.FileURL, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.ID = id.DocumentID(docID)
		d.ApplicationID = id.ApplicationID(ownerID)
		d.Type = models.DocumentType(docType)
		out = append(out, &d)
	}
	return out, rows.Err()
}

const customerColumns = `
	id, first_name, last_name, email, date_of_birth, phone_number, national_id,
	address, occupation, company_name, linkedin_url, citizenship, risk_level,
	created_at, updated_at`

func (s *Postgres) SaveCustomer(ctx context.Context, c *models.Customer) error {
	var dob any
	if c.DateOfBirth != nil {
		dob = *c.DateOfBirth
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			email = EXCLUDED.email,
			date_of_birth = EXCLUDED.date_of_birth,
			phone_number = EXCLUDED.phone_number,
			national_id = EXCLUDED.national_id,
			address = EXCLUDED.address,
			occupation = EXCLUDED.occupation,
			company_name = EXCLUDED.company_name,
			linkedin_url = EXCLUDED.linkedin_url,
			citizenship = EXCLUDED.citizenship,
			risk_level = EXCLUDED.risk_level,
			updated_at = EXCLUDED.updated_at
	`, uuid.UUID(c.ID), c.FirstName, c.LastName, c.Email, dob, c.PhoneNumber, c.NationalID,
		c.Address, c.Occupation, c.CompanyName, c.LinkedinURL, c.Citizenship, c.RiskLevel,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return translate(err, "save customer")
	}
	return nil
}

func (s *Postgres) FindCustomer(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, uuid.UUID(customerID))
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	return c, err
}

func (s *Postgres) ListCustomers(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCustomer(row scanner) (*models.Customer, error) {
	var c models.Customer
	var customerID uuid.UUID
	var dob sql.NullTime
	err := row.Scan(&customerID, &c.FirstName, &c.LastName, &c.Email, &dob, &c.PhoneNumber, &c.NationalID,
		&c.Address, &c.Occupation, &c.CompanyName, &c.LinkedinURL, &c.Citizenship, &c.RiskLevel,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	c.ID = id.CustomerID(customerID)
	if dob.Valid {
		t := dob.Time.UTC().Truncate(24 * time.Hour)
		c.DateOfBirth = &t
	}
	return &c, nil
}

func jsonParam(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func rawOrNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// translate maps constraint violations onto sentinel errors.
func translate(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, sentinel.ErrConflict)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, sentinel.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
