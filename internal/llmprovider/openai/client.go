// Package openai adapts the OpenAI (and OpenAI-compatible, e.g. OpenRouter)
// chat completions API to the llmprovider.Completer interface.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog/log"

	"hyperthink/internal/llmprovider"
)

// Pricing is a per-million-token cost table keyed by model id.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Client adapts an OpenAI-compatible endpoint to llmprovider.Completer.
type Client struct {
	sdk     sdk.Client
	pricing map[string]Pricing
}

// Config carries the connection details for a single endpoint.
type Config struct {
	APIKey  string
	BaseURL string // empty = api.openai.com; set for OpenRouter/MLX-compatible backends
	Pricing map[string]Pricing
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
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Client{sdk: sdk.NewClient(opts...), pricing: cfg.Pricing}
}

func (c *Client) Complete(ctx context.Context, req llmprovider.Request) (llmprovider.Completion, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       shared.ChatModel(req.Model),
		Messages:    adaptMessages(req.Messages),
		Temperature: param.NewOpt(req.Temperature),
		TopP:        param.NewOpt(req.TopP),
	}
	if req.TopK != nil {
		// OpenAI's Chat Completions API has no native top_k; forward it as a
		// provider-specific extra field the way the teacher's client does for
		// out-of-band params, so OpenRouter-fronted models that honor it still
		// receive it.
		params.SetExtraFields(map[string]any{"top_k": *req.TopK})
	}
	if req.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(req.ReasoningEffort)
	}
	if len(req.Tools) > 0 {
		params.Tools = adaptTools(req.Tools)
	}
	if req.ResponseFormat != nil && req.ResponseFormat.JSONObject {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		if isRejection(err) {
			return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrProviderRejected, err)
		}
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}
	if len(comp.Choices) == 0 {
		return llmprovider.Completion{}, fmt.Errorf("%w: no choices returned", llmprovider.ErrTransport)
	}

	msg := comp.Choices[0].Message
	out := llmprovider.Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		switch v := tc.AsAny().(type) {
		case sdk.ChatCompletionMessageFunctionToolCall:
			out.ToolCalls = append(out.ToolCalls, llmprovider.ToolCall{
				ID:        v.ID,
				Name:      v.Function.Name,
				Arguments: []byte(v.Function.Arguments),
			})
		}
	}
	out.Usage = &llmprovider.Usage{
		PromptTokens:     int(comp.Usage.PromptTokens),
		CompletionTokens: int(comp.Usage.CompletionTokens),
	}

	log.Debug().
		Str("model", req.Model).
		Int("tools", len(req.Tools)).
		Int("prompt_tokens", out.Usage.PromptTokens).
		Int("completion_tokens", out.Usage.CompletionTokens).
		Msg("openai_chat_ok")

	return out, nil
}

func (c *Client) EstimateCost(model string, usage llmprovider.Usage) (float64, error) {
	p, ok := c.pricing[model]
	if !ok {
		return 0, fmt.Errorf("openai: no pricing entry for model %q", model)
	}
	return float64(usage.PromptTokens)/1_000_000*p.InputPerMillion +
		float64(usage.CompletionTokens)/1_000_000*p.OutputPerMillion, nil
}

// isRejection heuristically classifies an SDK error as a rejected parameter
// combination (HTTP 400) versus a transport-level failure.
func isRejection(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusBadRequest
	}
	return false
}

func adaptMessages(msgs []llmprovider.Message) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llmprovider.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case llmprovider.RoleUser:
			out = append(out, sdk.UserMessage(m.Content))
		case llmprovider.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, sdk.AssistantMessage(m.Content))
				continue
			}
			asst := sdk.ChatCompletionAssistantMessageParam{}
			asst.Content.OfString = sdk.String(m.Content)
			for _, tc := range m.ToolCalls {
				fn := sdk.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
						Arguments: string(tc.Arguments),
						Name:      tc.Name,
					},
				}
				asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{OfFunction: &fn})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case llmprovider.RoleTool:
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func adaptTools(schemas []llmprovider.ToolSchema) []sdk.ChatCompletionToolUnionParam {
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, sdk.ChatCompletionFunctionTool(sdk.FunctionDefinitionParam{
			Name:        s.Name,
			Description: sdk.String(s.Description),
			Parameters:  s.Parameters,
		}))
	}
	return out
}
