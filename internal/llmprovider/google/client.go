// Package google adapts the Gemini API (google.golang.org/genai) to the
// llmprovider.Completer interface.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	genai "google.golang.org/genai"
	"github.com/rs/zerolog/log"

	"hyperthink/internal/llmprovider"
)

// Pricing is a per-million-token cost table keyed by model id.
type Pricing struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Config carries the connection details for a single endpoint.
type Config struct {
	APIKey  string
	BaseURL string // empty = the default Gemini endpoint
	Timeout time.Duration
	Pricing map[string]Pricing
}

// Client adapts the genai SDK to llmprovider.Completer.
type Client struct {
	client      *genai.Client
	httpOptions genai.HTTPOptions
	pricing     map[string]Pricing
}

// New constructs a Client. httpClient may be nil to use http.DefaultClient.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	httpOpts := genai.HTTPOptions{}
	if cfg.Timeout > 0 {
		t := cfg.Timeout
		httpOpts.Timeout = &t
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("google provider: init client: %w", err)
	}

	return &Client{client: client, httpOptions: httpOpts, pricing: cfg.Pricing}, nil
}

// Complete issues a single GenerateContent call. Gemini has no notion of a
// rejected parameter combination the way OpenAI/Anthropic do a 400 on a bad
// response_format + tools mix, so every SDK failure is classified as
// ErrTransport; JSON mode is requested via ResponseMIMEType, which Gemini
// accepts alongside function declarations.
func (c *Client) Complete(ctx context.Context, req llmprovider.Request) (llmprovider.Completion, error) {
	contents, err := toContents(req.Messages)
	if err != nil {
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}
	tools, toolCfg, err := adaptTools(req.Tools)
	if err != nil {
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}

	cfg := &genai.GenerateContentConfig{
		HTTPOptions: &c.httpOptions,
		Tools:       tools,
		ToolConfig:  toolCfg,
	}
	temp := float32(req.Temperature)
	cfg.Temperature = &temp
	topP := float32(req.TopP)
	cfg.TopP = &topP
	if req.TopK != nil {
		topK := float32(*req.TopK)
		cfg.TopK = &topK
	}
	if req.ResponseFormat != nil && req.ResponseFormat.JSONObject {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}

	out, err := messageFromResponse(resp)
	if err != nil {
		return llmprovider.Completion{}, fmt.Errorf("%w: %v", llmprovider.ErrTransport, err)
	}
	if resp.UsageMetadata != nil {
		out.Usage = &llmprovider.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	log.Debug().
		Str("model", req.Model).
		Int("tools", len(req.Tools)).
		Msg("google_chat_ok")

	return out, nil
}

func (c *Client) EstimateCost(model string, usage llmprovider.Usage) (float64, error) {
	p, ok := c.pricing[model]
	if !ok {
		return 0, fmt.Errorf("google: no pricing entry for model %q", model)
	}
	return float64(usage.PromptTokens)/1_000_000*p.InputPerMillion +
		float64(usage.CompletionTokens)/1_000_000*p.OutputPerMillion, nil
}

func toContents(msgs []llmprovider.Message) ([]*genai.Content, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("messages required")
	}

	toolNamesByID := make(map[string]string)
	var lastFuncName string
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role string
		switch m.Role {
		case llmprovider.RoleUser, llmprovider.RoleSystem:
			role = genai.RoleUser
		case llmprovider.RoleAssistant:
			role = genai.RoleModel
			for _, tc := range m.ToolCalls {
				if tc.ID != "" && tc.Name != "" {
					toolNamesByID[tc.ID] = tc.Name
				}
				if strings.TrimSpace(tc.Name) != "" {
					lastFuncName = tc.Name
				}
			}
		case llmprovider.RoleTool:
			name := toolNamesByID[m.ToolCallID]
			if name == "" {
				name = lastFuncName
				if name == "" {
					name = "tool_response"
				}
			}
			respMap := map[string]any{}
			if trimmed := strings.TrimSpace(m.Content); trimmed != "" {
				if err := json.Unmarshal([]byte(trimmed), &respMap); err != nil {
					respMap = map[string]any{"output": m.Content}
				}
			}
			part := genai.NewPartFromFunctionResponse(name, respMap)
			part.FunctionResponse.ID = m.ToolCallID
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
			continue
		default:
			return nil, fmt.Errorf("unsupported role for google provider: %s", m.Role)
		}

		text := m.Content
		if role == genai.RoleUser && m.Role == llmprovider.RoleSystem {
			text = "[system] " + text
		}
		var parts []*genai.Part
		if strings.TrimSpace(text) != "" {
			parts = append(parts, &genai.Part{Text: text})
		}
		if role == genai.RoleModel {
			for _, tc := range m.ToolCalls {
				var args map[string]any
				if len(tc.Arguments) > 0 {
					_ = json.Unmarshal(tc.Arguments, &args)
				}
				if len(args) == 0 && len(tc.Arguments) > 0 {
					args = map[string]any{"input": string(tc.Arguments)}
				}
				parts = append(parts, genai.NewPartFromFunctionCall(tc.Name, args))
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents, nil
}

func messageFromResponse(resp *genai.GenerateContentResponse) (llmprovider.Completion, error) {
	if resp == nil {
		return llmprovider.Completion{}, fmt.Errorf("nil response from google provider")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return llmprovider.Completion{}, fmt.Errorf("request blocked by google: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return llmprovider.Completion{}, fmt.Errorf("no candidates in google response")
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety:
		return llmprovider.Completion{}, fmt.Errorf("response blocked by safety filters")
	case genai.FinishReasonRecitation:
		return llmprovider.Completion{}, fmt.Errorf("response blocked due to recitation")
	case genai.FinishReasonMalformedFunctionCall:
		return llmprovider.Completion{}, fmt.Errorf("malformed function call generated by model")
	}
	if candidate.Content == nil {
		return llmprovider.Completion{}, nil
	}

	var sb strings.Builder
	var calls []llmprovider.ToolCall
	callIdx := 0
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, _ := json.Marshal(part.FunctionCall.Args)
			callIdx++
			id := part.FunctionCall.ID
			if strings.TrimSpace(id) == "" {
				id = "call-" + strconv.Itoa(callIdx)
			}
			calls = append(calls, llmprovider.ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: args})
		}
	}

	return llmprovider.Completion{Content: sb.String(), ToolCalls: calls}, nil
}

func adaptTools(schemas []llmprovider.ToolSchema) ([]*genai.Tool, *genai.ToolConfig, error) {
	if len(schemas) == 0 {
		return nil, nil, nil
	}
	fd := make([]*genai.FunctionDeclaration, 0, len(schemas))
	names := make([]string, 0, len(schemas))
	for _, s := range schemas {
		if strings.TrimSpace(s.Name) == "" {
			return nil, nil, fmt.Errorf("google provider: tool name required")
		}
		names = append(names, s.Name)
		fd = append(fd, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	sort.Strings(names)
	cfg := &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingConfigModeAuto},
	}
	return []*genai.Tool{{FunctionDeclarations: fd}}, cfg, nil
}
