package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Kochanac/pi-mono/core"
	"github.com/Kochanac/pi-mono/tool"
)

const (
	defaultFetchMaxChars = 50000
	fetchTimeout         = 30 * time.Second
)

var tagStripper = regexp.MustCompile(`(?s)<(script|style)[^>]*>.*?</(script|style)>|<[^>]+>`)

// WebFetchTool fetches a URL and returns its content as plain text. HTML is
// reduced by stripping tags; other content types pass through unchanged.
type WebFetchTool struct {
	client   *http.Client
	maxChars int
}

// WebFetchConfig holds configuration for the web fetch tool.
type WebFetchConfig struct {
	MaxChars int
	Client   *http.Client
}

// NewWebFetchTool creates the fetch tool.
func NewWebFetchTool(cfg WebFetchConfig) *WebFetchTool {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = defaultFetchMaxChars
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}
	return &WebFetchTool{client: client, maxChars: maxChars}
}

// Name implements tool.Tool.
func (t *WebFetchTool) Name() string { return "web_fetch" }

// Label implements tool.Tool.
func (t *WebFetchTool) Label() string { return "Fetch URL" }

// Description implements tool.Tool.
func (t *WebFetchTool) Description() string {
	return "Fetch an HTTP or HTTPS URL and return its content as text. HTML markup is stripped."
}

// Parameters implements tool.Tool.
func (t *WebFetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "HTTP or HTTPS URL to fetch.",
			},
			"maxChars": map[string]any{
				"type":        "number",
				"description": "Maximum characters to return (truncates when exceeded).",
			},
		},
		"required": []string{"url"},
	}
}

// Execute implements tool.Tool.
func (t *WebFetchTool) Execute(ctx context.Context, _ string, args map[string]any, _ tool.UpdateFunc) (*tool.Result, error) {
	rawURL, _ := args["url"].(string)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("only http and https URLs are supported")
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("missing hostname in URL")
	}

	maxChars := t.maxChars
	if mc, ok := args["maxChars"].(float64); ok && int(mc) > 0 {
		maxChars = int(mc)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxChars)*4))
	if err != nil {
		return nil, err
	}

	text := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		text = tagStripper.ReplaceAllString(text, " ")
		text = strings.Join(strings.Fields(text), " ")
	}
	text = truncate(text, maxChars)

	return &tool.Result{
		Content: []core.Part{core.TextPart{Text: text}},
		Details: map[string]any{"status": resp.StatusCode, "content_type": resp.Header.Get("Content-Type")},
	}, nil
}
