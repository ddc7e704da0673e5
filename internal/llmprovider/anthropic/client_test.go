package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperthink/internal/llmprovider"
)

func minimalUsage() sdk.Usage {
	return sdk.Usage{InputTokens: 3, OutputTokens: 5}
}

func newTestServer(t *testing.T, resp sdk.Message) (*Client, *map[string]any) {
	t.Helper()
	reqBody := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		w.Header().Set("Content-Type", "application/json")
		b, _ := json.Marshal(resp)
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)
	client := New(Config{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	return client, &reqBody
}

func TestComplete_ReturnsTextAndUsage(t *testing.T) {
	client, _ := newTestServer(t, sdk.Message{
		Type:  constant.Message("message"),
		Role:  constant.Assistant("assistant"),
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "hello"},
		},
		Usage: minimalUsage(),
	})

	out, err := client.Complete(context.Background(), llmprovider.Request{
		Model:    "claude-test",
		Messages: []llmprovider.Message{{Role: llmprovider.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Content)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 3, out.Usage.PromptTokens)
	assert.Equal(t, 5, out.Usage.CompletionTokens)
}

func TestComplete_ExtractsToolCallAndGeneratesIDWhenMissing(t *testing.T) {
	client, reqBody := newTestServer(t, sdk.Message{
		Type: constant.Message("message"),
		Role: constant.Assistant("assistant"),
		Content: []sdk.ContentBlockUnion{
			{Type: "tool_use", Name: "lookup", ID: "", Input: json.RawMessage(`{"x":2}`)},
		},
		Usage: minimalUsage(),
	})

	out, err := client.Complete(context.Background(), llmprovider.Request{
		Model:    "claude-test",
		Messages: []llmprovider.Message{{Role: llmprovider.RoleUser, Content: "go"}},
		Tools: []llmprovider.ToolSchema{
			{Name: "lookup", Description: "desc", Parameters: map[string]any{"type": "object"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "lookup", out.ToolCalls[0].Name)
	assert.NotEmpty(t, out.ToolCalls[0].ID)
	assert.NotNil(t, (*reqBody)["tools"])
}

func TestComplete_JSONResponseFormatRejectedWithoutCallingProvider(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	client := New(Config{APIKey: "k", BaseURL: srv.URL}, srv.Client())

	_, err := client.Complete(context.Background(), llmprovider.Request{
		Model:          "claude-test",
		Messages:       []llmprovider.Message{{Role: llmprovider.RoleUser, Content: "hi"}},
		ResponseFormat: &llmprovider.ResponseFormat{JSONObject: true},
	})
	require.ErrorIs(t, err, llmprovider.ErrProviderRejected)
	assert.False(t, called, "provider must not be called when json response_format is requested")
}

func TestEstimateCost_UnknownModelErrors(t *testing.T) {
	client := New(Config{APIKey: "k"}, nil)
	_, err := client.EstimateCost("unknown-model", llmprovider.Usage{PromptTokens: 1})
	require.Error(t, err)
}

func TestEstimateCost_KnownModel(t *testing.T) {
	client := New(Config{APIKey: "k", Pricing: map[string]Pricing{
		"claude-test": {InputPerMillion: 3, OutputPerMillion: 15},
	}}, nil)
	cost, err := client.EstimateCost("claude-test", llmprovider.Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000})
	require.NoError(t, err)
	assert.InDelta(t, 18.0, cost, 1e-9)
}
