// Package anthropic adapts the Anthropic Messages API to the
// llmprovider.Completer interface.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/rs/zerolog/log"

	"hyperthink/internal/llmprovider"
)

const defaultMaxTokens int64 = 4096

// Pricing is a per-million-token cost table keyed by model id.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Config carries the connection details for a single endpoint.
type Config struct {
	APIKey    string
	BaseURL   string // empty = api.anthropic.com
	MaxTokens int64  // 0 = defaultMaxTokens
	Pricing   map[string]Pricing
}

// Client adapts the Anthropic SDK to llmprovider.Completer.
type Client struct {
	sdk       anthropic.Client
	maxTokens int64
	pricing   map[string]Pricing
}

// New constructs a Client. httpClient may be nil to use http.DefaultClient.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{sdk: anthropic.NewClient(opts...), maxTokens: maxTokens, pricing: cfg.Pricing}
}

// Complete issues a single Messages.New call. Anthropic's API has no native
// JSON response_format parameter, so a ResponseFormat request always fails
// fast with ErrProviderRejected rather than being silently ignored. That lets
// the scaffolding controller's existing retry-without-format path handle it
// the same way it handles an OpenAI-style 400: the reviewer prompt's own
// formatting instructions plus Parse's fence-stripping do the rest.
func (c *Client) Complete(ctx context.Context, req llmprovider.Request) (llmprovider.Completion, error) {
	if req.ResponseFormat != nil && req.ResponseFormat.JSONObject {
		return llmprovider.Completion{}, fmt.Errorf("%w: anthropic has no json_object response_format", llmprovider.ErrProviderRejected)
	}

	system, messages, err := adaptMessages(req.Messages)
	if err != nil {
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}
	tools, err := adaptTools(req.Tools)
	if err != nil {
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		Messages:    messages,
		System:      system,
		Tools:       tools,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		TopP:        anthropic.Float(req.TopP),
	}
	if req.TopK != nil {
		params.TopK = anthropic.Int(int64(*req.TopK))
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		if isRejection(err) {
			return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrProviderRejected, err)
		}
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}

	out := messageFromResponse(resp)
	out.Usage = &llmprovider.Usage{
		PromptTokens:     usagePromptTokens(resp.Usage.CacheCreationInputTokens, resp.Usage.CacheReadInputTokens, resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
	}

	log.Debug().
		Str("model", req.Model).
		Int("tools", len(req.Tools)).
		Int("prompt_tokens", out.Usage.PromptTokens).
		Int("completion_tokens", out.Usage.CompletionTokens).
		Msg("anthropic_chat_ok")

	return out, nil
}

func (c *Client) EstimateCost(model string, usage llmprovider.Usage) (float64, error) {
	p, ok := c.pricing[model]
	if !ok {
		return 0, fmt.Errorf("anthropic: no pricing entry for model %q", model)
	}
	return float64(usage.PromptTokens)/1_000_000*p.InputPerMillion +
		float64(usage.CompletionTokens)/1_000_000*p.OutputPerMillion, nil
}

// isRejection heuristically classifies an SDK error as a rejected parameter
// combination (HTTP 400) versus a transport-level failure.
func isRejection(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusBadRequest
	}
	return false
}

func adaptMessages(msgs []llmprovider.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam, error) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))
	toolResultCount := 0

	for _, m := range msgs {
		switch m.Role {
		case llmprovider.RoleSystem:
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropic.TextBlockParam{Text: m.Content})
			}
		case llmprovider.RoleUser:
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case llmprovider.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for i, tc := range m.ToolCalls {
				id := strings.TrimSpace(tc.ID)
				if id == "" {
					id = fmt.Sprintf("call-%d", i+1)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(id, decodeArgs(tc.Arguments), tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case llmprovider.RoleTool:
			id := strings.TrimSpace(m.ToolCallID)
			if id == "" {
				toolResultCount++
				id = fmt.Sprintf("tool-result-%d", toolResultCount)
			}
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(id, m.Content, false)))
		default:
			return nil, nil, fmt.Errorf("unsupported role for anthropic provider: %s", m.Role)
		}
	}
	return system, out, nil
}

func decodeArgs(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	return map[string]any{}
}

func adaptTools(tools []llmprovider.ToolSchema) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("anthropic provider: tool name required")
		}
		schema := anthropic.ToolInputSchemaParam{Type: constant.ValueOf[constant.Object]()}
		extras := map[string]any{}
		for k, v := range t.Parameters {
			extras[k] = v
		}
		if props, ok := extras["properties"]; ok {
			schema.Properties = props
			delete(extras, "properties")
		}
		if req, ok := extras["required"]; ok {
			delete(extras, "required")
			switch v := req.(type) {
			case []string:
				schema.Required = v
			case []any:
				for _, item := range v {
					if s, ok := item.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		delete(extras, "type")
		if len(extras) > 0 {
			schema.ExtraFields = extras
		}

		param := anthropic.ToolParam{Name: name, InputSchema: schema}
		if desc := strings.TrimSpace(t.Description); desc != "" {
			param.Description = anthropic.String(desc)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func messageFromResponse(resp *anthropic.Message) llmprovider.Completion {
	if resp == nil {
		return llmprovider.Completion{}
	}
	var sb strings.Builder
	var calls []llmprovider.ToolCall
	callIdx := 0

	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(v.Text)
		case anthropic.ToolUseBlock:
			callIdx++
			id := strings.TrimSpace(v.ID)
			if id == "" {
				id = fmt.Sprintf("call-%d", callIdx)
			}
			args := v.Input
			if len(args) == 0 {
				if b, err := json.Marshal(v.Input); err == nil {
					args = b
				}
			}
			calls = append(calls, llmprovider.ToolCall{ID: id, Name: v.Name, Arguments: args})
		}
	}

	return llmprovider.Completion{Content: sb.String(), ToolCalls: calls}
}

func usagePromptTokens(cacheCreation, cacheRead, input int64) int {
	return int(cacheCreation + cacheRead + input)
}
