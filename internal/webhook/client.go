package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vanzer80/solicitacao-materiais-api/pkg/config"
)

// Outcome tags the terminal state of a delivery attempt. The upstream
// endpoint may answer with JSON in two shapes, HTML error pages or an
// empty body, so success must always be established positively.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeHTMLError      Outcome = "html_error"
	OutcomeJSONParseError Outcome = "json_parse_error"
	OutcomeAuthError      Outcome = "auth_error"
	OutcomeAppError       Outcome = "app_error"
	OutcomeNetworkError   Outcome = "network_error"
)

// Result reports a delivery attempt to the orchestrator.
type Result struct {
	Success     bool
	Outcome     Outcome
	Message     string
	RequestID   string
	RowsWritten int
	Retried     bool
}

// DeliveryRecorder receives delivery outcome metrics.
type DeliveryRecorder interface {
	RecordWebhookDelivery(outcome string, duration time.Duration)
}

const tokenHeader = "X-Webhook-Token"

var htmlMarker = regexp.MustCompile(`(?i)^\s*<!DOCTYPE|^\s*<html`)

// Client delivers assembled submissions to the spreadsheet webhook.
type Client struct {
	cfg        config.WebhookConfig
	httpClient *http.Client
	logger     *zap.Logger
	metrics    DeliveryRecorder
}

// NewClient builds a delivery client. The metrics recorder may be nil.
func NewClient(cfg config.WebhookConfig, logger *zap.Logger, metrics DeliveryRecorder) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// Deliver posts the payload and classifies the response. Transport-level
// failures are retried exactly once after the configured delay; every
// other failure category is terminal on the first attempt.
func (c *Client) Deliver(ctx context.Context, payload SolicitacaoPayload) Result {
	start := time.Now()
	result := c.deliver(ctx, payload)
	if c.metrics != nil {
		c.metrics.RecordWebhookDelivery(string(result.Outcome), time.Since(start))
	}
	return result
}

func (c *Client) deliver(ctx context.Context, payload SolicitacaoPayload) Result {
	if c.cfg.MockMode {
		c.logger.Info("webhook mock mode, returning success",
			zap.String("request_id", payload.RequestID))
		return Result{
			Success:   true,
			Outcome:   OutcomeSuccess,
			Message:   "Mock webhook response",
			RequestID: payload.RequestID,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{
			Outcome: OutcomeAppError,
			Message: "falha ao serializar payload: " + err.Error(),
		}
	}

	c.logger.Info("webhook sending request",
		zap.String("url", c.RedactedURL()),
		zap.String("request_id", payload.RequestID),
		zap.Int("items", len(payload.Items)))

	status, contentType, respBody, err := c.post(ctx, body)
	if err != nil {
		c.logger.Warn("webhook network error, retrying once",
			zap.String("request_id", payload.RequestID), zap.Error(err))
		if waitErr := sleepCtx(ctx, c.retryDelay()); waitErr != nil {
			return Result{
				Outcome: OutcomeNetworkError,
				Message: "erro ao enviar solicitação: " + err.Error(),
			}
		}
		status, contentType, respBody, err = c.post(ctx, body)
		if err != nil {
			c.logger.Error("webhook unreachable after retry",
				zap.String("request_id", payload.RequestID), zap.Error(err))
			return Result{
				Outcome: OutcomeNetworkError,
				Message: "erro ao enviar solicitação: " + err.Error(),
				Retried: true,
			}
		}
		result := c.classify(status, contentType, respBody, payload.RequestID)
		result.Retried = true
		return result
	}

	return c.classify(status, contentType, respBody, payload.RequestID)
}

func (c *Client) post(ctx context.Context, body []byte) (status int, contentType string, respBody []byte, err error) {
	endpoint, err := c.endpointURL()
	if err != nil {
		return 0, "", nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, err
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), data, nil
}

// classify inspects the raw body before any JSON parsing: Apps Script
// deployments that are misconfigured or not published answer with HTML
// login/error pages regardless of status code.
func (c *Client) classify(status int, contentType string, body []byte, requestID string) Result {
	text := string(body)

	if IsHTMLResponse(text) || strings.Contains(strings.ToLower(contentType), "text/html") {
		c.logger.Error("webhook returned HTML, URL or publication issue",
			zap.String("url", c.RedactedURL()), zap.Int("status", status))
		return Result{
			Outcome: OutcomeHTMLError,
			Message: "Webhook retornou HTML — verifique URL /exec e publicação do Apps Script",
		}
	}

	if status == http.StatusUnauthorized {
		c.logger.Error("webhook authentication failed", zap.Int("status", status))
		return Result{
			Outcome: OutcomeAuthError,
			Message: "Erro de autenticação — verifique token do webhook",
		}
	}

	var parsed upstreamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.logger.Error("webhook response is not valid JSON",
			zap.Int("status", status), zap.String("body_snippet", snippet(text, 200)))
		return Result{
			Outcome: OutcomeJSONParseError,
			Message: "Resposta do webhook não é JSON válido",
		}
	}

	switch {
	case parsed.OK != nil && *parsed.OK:
		return Result{
			Success:     true,
			Outcome:     OutcomeSuccess,
			Message:     "Solicitação enviada com sucesso",
			RequestID:   firstNonEmpty(parsed.RequestID, requestID),
			RowsWritten: parsed.RowsWritten,
		}
	case parsed.Success != nil && *parsed.Success:
		return Result{
			Success:   true,
			Outcome:   OutcomeSuccess,
			Message:   "Solicitação enviada com sucesso",
			RequestID: firstNonEmpty(parsed.RequestID, requestID),
		}
	case parsed.OK != nil && !*parsed.OK:
		msg := "Webhook respondeu com erro"
		if parsed.Error != "" {
			msg = msg + ": " + parsed.Error
		}
		return Result{Outcome: OutcomeAppError, Message: msg}
	default:
		// Never infer success from the absence of an explicit failure
		// signal: an empty object is a failure.
		c.logger.Error("webhook response in unrecognized shape",
			zap.String("body_snippet", snippet(text, 200)))
		return Result{
			Outcome: OutcomeAppError,
			Message: "Resposta do webhook em formato não reconhecido",
		}
	}
}

// upstreamResponse covers both accepted success shapes plus the explicit
// failure shape. Pointers distinguish "absent" from "false".
type upstreamResponse struct {
	OK          *bool  `json:"ok"`
	Success     *bool  `json:"success"`
	Error       string `json:"error"`
	RequestID   string `json:"request_id"`
	RowsWritten int    `json:"rows_written"`
}

func (c *Client) endpointURL() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RedactedURL returns the endpoint with the auth token masked for logging.
func (c *Client) RedactedURL() string {
	endpoint, err := c.endpointURL()
	if err != nil {
		return RedactToken(c.cfg.URL, c.cfg.Token)
	}
	return RedactToken(endpoint, c.cfg.Token)
}

// RedactToken masks every occurrence of the token in the given string.
func RedactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "****")
}

// IsHTMLResponse detects HTML bodies ahead of JSON parsing.
func IsHTMLResponse(text string) bool {
	return htmlMarker.MatchString(strings.TrimSpace(text))
}

func (c *Client) retryDelay() time.Duration {
	if c.cfg.RetryDelay > 0 {
		return c.cfg.RetryDelay
	}
	return 800 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
