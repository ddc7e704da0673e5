package webfetch

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool adapts a Fetcher to the toolkit.Tool interface under the name
// "web_fetch".
type Tool struct {
	fetcher *Fetcher
}

// NewTool wraps fetcher (or a default-configured one, if nil) as a tool.
func NewTool(fetcher *Fetcher) *Tool {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	return &Tool{fetcher: fetcher}
}

func (t *Tool) Name() string { return "web_fetch" }

func (t *Tool) JSONSchema() map[string]any {
	return map[string]any{
		"description": "Fetch a web page by URL and return its main content as markdown.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "Absolute http(s) URL to fetch.",
				},
			},
			"required": []string{"url"},
		},
	}
}

type fetchArgs struct {
	URL string `json:"url"`
}

func (t *Tool) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	var args fetchArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if args.URL == "" {
		return "", fmt.Errorf("url is required")
	}

	page, err := t.fetcher.Fetch(ctx, args.URL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n%s (status %d)\n\n%s", page.Title, page.ResolvedURL, page.StatusCode, page.Markdown), nil
}
