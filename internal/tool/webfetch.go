package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agentrt/core/internal/apperr"
	"github.com/agentrt/core/internal/toolpolicy"
)

const webfetchDescription = `Fetches a URL and returns its raw body, truncated to a size limit.

Usage notes:
  - url must start with http:// or https://
  - This tool is read-only and never modifies files
  - Large responses are truncated to 5MB with a truncation marker appended; no markdown/text
    conversion is performed, so binary or heavily-marked-up pages are returned as-is`

const (
	maxResponseSize = 5 * 1024 * 1024
	defaultTimeout  = 30 * time.Second
	maxTimeout      = 120 * time.Second
)

var webfetchSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"url": {"type": "string", "description": "The URL to fetch"},
		"timeout": {"type": "integer", "description": "Optional timeout in seconds (max 120)"}
	},
	"required": ["url"]
}`)

// WebFetchTool implements raw HTTP content fetching with byte truncation.
type WebFetchTool struct {
	client *http.Client
}

func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: maxTimeout}}
}

func (t *WebFetchTool) Name() string { return "webfetch" }

func (t *WebFetchTool) Definition() Definition {
	return Definition{Description: webfetchDescription, Schema: webfetchSchema}
}

func (t *WebFetchTool) RequiredCapabilities() []toolpolicy.Capability { return nil }

type webfetchInput struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout,omitempty"`
}

func (t *WebFetchTool) Call(ctx context.Context, argsJSON json.RawMessage, tc *Context) (string, error) {
	var params webfetchInput
	if err := json.Unmarshal(argsJSON, &params); err != nil {
		return "", apperr.InvalidRequestf("invalid webfetch arguments: %v", err)
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return "", apperr.InvalidRequestf("url must start with http:// or https://")
	}

	timeout := defaultTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > maxTimeout {
			timeout = maxTimeout
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, params.URL, nil)
	if err != nil {
		return "", apperr.InvalidRequestf("build request: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; agentrt/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", apperr.Wrap(apperr.BackendError, "fetch url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", apperr.InvalidRequestf("request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return "", apperr.Wrap(apperr.BackendError, "read response", err)
	}

	truncated := len(body) > maxResponseSize
	if truncated {
		body = body[:maxResponseSize]
	}

	out := string(body)
	if truncated {
		out += fmt.Sprintf("\n\n(truncated at %d bytes)", maxResponseSize)
	}
	return out, nil
}
