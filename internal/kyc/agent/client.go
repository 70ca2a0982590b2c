// Package agent is the HTTP client for the external screening agent.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kycflow/internal/kyc/models"
	"kycflow/pkg/platform/circuit"
	pstrings "kycflow/pkg/platform/strings"
)

const (
	endpointAnalyze = "/analyze"
	endpointQuick   = "/analyze/quick"
	endpointHealth  = "/"
	endpointInfo    = "/info"

	maxResponseBytes = 4 << 20
	defaultTimeout   = 30 * time.Second
)

// Client calls the agent service. Screening calls go through a circuit
// breaker; health and info calls do not, so operators can probe a tripped
// agent.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client for baseURL. timeout bounds each call.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: circuit.New("agent"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze runs the full screening for one case.
func (c *Client) Analyze(ctx context.Context, req models.ScreeningRequest) (models.ScreeningReport, error) {
	var resp analyzeResponse
	if err := c.guarded(ctx, endpointAnalyze, toWire(req), &resp); err != nil {
		return models.ScreeningReport{}, err
	}
	if resp.RiskScore == nil {
		return models.ScreeningReport{}, newCallError(ErrorContractMismatch, endpointAnalyze, "response has no risk_score", nil)
	}
	if *resp.RiskScore < 0 || *resp.RiskScore > 100 {
		return models.ScreeningReport{}, newCallError(ErrorBadData, endpointAnalyze,
			fmt.Sprintf("risk_score %d outside 0..100", *resp.RiskScore), nil)
	}
	if strings.TrimSpace(resp.Status) == "" {
		return models.ScreeningReport{}, newCallError(ErrorContractMismatch, endpointAnalyze, "response has no status", nil)
	}
	return models.ScreeningReport{
		CaseID:               resp.CaseID,
		RiskScore:            *resp.RiskScore,
		Status:               resp.Status,
		Reasoning:            resp.Reasoning,
		FoundInDB:            resp.FoundInDB,
		RequiresManualReview: resp.RequiresManualReview,
		ProcessingTimeMS:     resp.ProcessingTimeMS,
		Details:              resp.Details,
	}, nil
}

// QuickAssess asks for the lightweight pre-screen.
func (c *Client) QuickAssess(ctx context.Context, req models.ScreeningRequest) (QuickAssessment, error) {
	var out QuickAssessment
	if err := c.guarded(ctx, endpointQuick, toWire(req), &out); err != nil {
		return QuickAssessment{}, err
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, endpointHealth, nil, &out)
	return out, err
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	var out Info
	err := c.do(ctx, http.MethodGet, endpointInfo, nil, &out)
	return out, err
}

// BreakerState reports the screening breaker state for health output.
func (c *Client) BreakerState() circuit.State {
	return c.breaker.State()
}

func (c *Client) guarded(ctx context.Context, endpoint string, body, out any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("%s: %w", endpoint, ErrCircuitOpen)
	}
	err := c.do(ctx, http.MethodPost, endpoint, body, out)
	if err == nil {
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "agent circuit closed", "endpoint", endpoint)
		}
		return nil
	}
	// Contract problems are ours to fix; they do not count against the agent.
	if Category(err) == ErrorTimeout || Category(err) == ErrorProviderOutage {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "agent circuit opened", "endpoint", endpoint, "error", err)
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return newCallError(ErrorInternal, endpoint, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return newCallError(ErrorInternal, endpoint, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return classifyTransport(endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		category := ErrorProviderOutage
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			category = ErrorContractMismatch
		}
		ce := newCallError(category, endpoint, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
		ce.StatusCode = resp.StatusCode
		return ce
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return newCallError(ErrorBadData, endpoint, "decode response", err)
	}
	return nil
}

func classifyTransport(endpoint string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return newCallError(ErrorTimeout, endpoint, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return newCallError(ErrorInternal, endpoint, "request canceled", err)
	}
	return newCallError(ErrorProviderOutage, endpoint, "agent unreachable", err)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func toWire(req models.ScreeningRequest) analyzeRequest {
	files := pstrings.DedupeAndTrim(req.DocumentURLs)
	if files == nil {
		files = []string{}
	}
	return analyzeRequest{
		CustomerID:  req.CustomerID.String(),
		Name:        req.FullName,
		NIK:         req.NationalID,
		Files:       files,
		LinkedinURL: req.LinkedinURL,
		CompanyName: req.CompanyName,
	}
}
