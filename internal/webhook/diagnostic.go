package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DiagnosticResult captures everything an operator needs to understand why
// the upstream endpoint is misbehaving, with the token already redacted.
type DiagnosticResult struct {
	URLMasked   string      `json:"urlMasked"`
	Status      *int        `json:"status"`
	ContentType string      `json:"contentType,omitempty"`
	BodySnippet string      `json:"bodySnippet"`
	IsHTML      bool        `json:"isHtml"`
	ParsedJSON  interface{} `json:"parsedJson"`
	Error       string      `json:"error,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Diagnose posts a ping payload to the webhook and reports the raw shape of
// whatever comes back without interpreting it as a submission result.
func (c *Client) Diagnose(ctx context.Context) DiagnosticResult {
	result := DiagnosticResult{
		URLMasked: c.RedactedURL(),
		Timestamp: time.Now().UTC(),
	}

	c.logger.Info("webhook diagnostic started", zap.String("url", result.URLMasked))

	endpoint, err := c.endpointURL()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(`{"ping":true}`))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Error = RedactToken(err.Error(), c.cfg.Token)
		c.logger.Error("webhook diagnostic failed", zap.String("error", result.Error))
		return result
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	text := string(body)
	status := resp.StatusCode
	result.Status = &status
	result.ContentType = resp.Header.Get("Content-Type")
	result.BodySnippet = snippet(text, 500)
	result.IsHTML = IsHTMLResponse(text) || strings.Contains(strings.ToLower(result.ContentType), "text/html")

	if !result.IsHTML {
		var parsed interface{}
		if err := json.Unmarshal(body, &parsed); err == nil {
			result.ParsedJSON = parsed
		}
	}

	c.logger.Info("webhook diagnostic finished",
		zap.Int("status", status),
		zap.String("content_type", result.ContentType),
		zap.Bool("is_html", result.IsHTML),
		zap.Int("body_length", len(text)))

	return result
}
