package webfetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool_CallFetchesAndReturnsMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("hello from tool"))
	}))
	t.Cleanup(srv.Close)

	tool := NewTool(NewFetcher())
	raw, _ := json.Marshal(map[string]string{"url": srv.URL})
	out, err := tool.Call(context.Background(), raw)
	require.NoError(t, err)
	assert.Contains(t, out, "hello from tool")
}

func TestTool_CallMissingURLErrors(t *testing.T) {
	tool := NewTool(nil)
	_, err := tool.Call(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
}

func TestTool_JSONSchemaNamesURLParameter(t *testing.T) {
	tool := NewTool(nil)
	schema := tool.JSONSchema()
	params, ok := schema["parameters"].(map[string]any)
	require.True(t, ok)
	props, ok := params["properties"].(map[string]any)
	require.True(t, ok)
	_, hasURL := props["url"]
	assert.True(t, hasURL)
	assert.Equal(t, "web_fetch", tool.Name())
}
