package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

const (
	fetchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36"
	maxRedirects   = 5
)

// FetchURLTool fetches a URL and extracts readable content, so the agent can
// follow links found in issues and pull requests during analysis.
type FetchURLTool struct {
	maxChars   int
	httpClient *http.Client
}

// NewFetchURLTool creates a FetchURLTool. maxChars defaults to 50000.
func NewFetchURLTool(maxChars int) *FetchURLTool {
	if maxChars <= 0 {
		maxChars = 50000
	}
	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
	return &FetchURLTool{maxChars: maxChars, httpClient: client}
}

func (t *FetchURLTool) Name() string { return "fetch_url" }
func (t *FetchURLTool) Description() string {
	return "Fetch a URL and extract its readable text content."
}

func (t *FetchURLTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "URL to fetch"
			},
			"maxChars": {
				"type": "integer",
				"minimum": 100
			}
		},
		"required": ["url"]
	}`)
}

// Execute reports failures in the result text so the agent can react; the
// returned error is always nil.
func (t *FetchURLTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	rawURL, _ := params["url"].(string)
	if rawURL == "" {
		return "Error: url is required", nil
	}
	if err := validateURL(rawURL); err != nil {
		return fmt.Sprintf("Error: URL validation failed: %v", err), nil
	}

	maxChars := t.maxChars
	if mc, ok := params["maxChars"].(float64); ok && mc > 0 {
		maxChars = int(mc)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL
	article, err := readability.FromReader(resp.Body, finalURL)
	if err != nil {
		return fmt.Sprintf("Error: extract content: %v", err), nil
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "(no readable content)", nil
	}
	if len(text) > maxChars {
		text = text[:maxChars] + "\n...[truncated]"
	}
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}

// validateURL checks that rawURL is http(s) with a valid domain.
func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http/https allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing domain in URL")
	}
	return nil
}
