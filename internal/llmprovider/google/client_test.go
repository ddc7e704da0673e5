package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperthink/internal/llmprovider"
)

func TestComplete_ReturnsText(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]}}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":5}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	out, err := client.Complete(context.Background(), llmprovider.Request{
		Model: "test-model",
		Messages: []llmprovider.Message{
			{Role: llmprovider.RoleSystem, Content: "do"},
			{Role: llmprovider.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Content)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 3, out.Usage.PromptTokens)
	assert.Equal(t, 5, out.Usage.CompletionTokens)
	assert.Contains(t, gotPath, "test-model:generateContent")
}

func TestComplete_SafetyBlockReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"finishReason":"SAFETY","content":{"role":"model","parts":[]}}]}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{APIKey: "k", BaseURL: srv.URL}, srv.Client())
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), llmprovider.Request{
		Model:    "test-model",
		Messages: []llmprovider.Message{{Role: llmprovider.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
}

func TestEstimateCost_KnownModel(t *testing.T) {
	client, err := New(Config{APIKey: "k", Pricing: map[string]Pricing{
		"gemini-test": {InputPerMillion: 1, OutputPerMillion: 2},
	}}, nil)
	require.NoError(t, err)

	cost, err := client.EstimateCost("gemini-test", llmprovider.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, cost, 1e-9)
}

func TestEstimateCost_UnknownModelErrors(t *testing.T) {
	client, err := New(Config{APIKey: "k"}, nil)
	require.NoError(t, err)
	_, err = client.EstimateCost("unknown", llmprovider.Usage{})
	require.Error(t, err)
}
