package mcpbridge

import (
	"context"
	"testing"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperthink/internal/toolkit"
)

func TestBridge_InitialStateIsUnstarted(t *testing.T) {
	b := NewBridge()
	assert.Equal(t, Unstarted, b.State())
	assert.Equal(t, "unstarted", b.State().String())
}

func TestBridge_StartTransitionsToRunningEvenWithNoServers(t *testing.T) {
	b := NewBridge()
	err := b.Start(context.Background(), nil, toolkit.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, Running, b.State())
}

func TestBridge_StartTwiceErrors(t *testing.T) {
	b := NewBridge()
	require.NoError(t, b.Start(context.Background(), nil, toolkit.NewRegistry()))
	err := b.Start(context.Background(), nil, toolkit.NewRegistry())
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestBridge_StartSkipsServerWithNeitherCommandNorURL(t *testing.T) {
	b := NewBridge()
	reg := toolkit.NewRegistry()
	err := b.Start(context.Background(), []ServerConfig{{Name: "broken"}}, reg)
	require.NoError(t, err)
	assert.Equal(t, Running, b.State())
	assert.Empty(t, reg.Schemas())
}

func TestBridge_CloseIsIdempotentAndTransitionsToClosed(t *testing.T) {
	b := NewBridge()
	require.NoError(t, b.Start(context.Background(), nil, toolkit.NewRegistry()))
	require.NoError(t, b.Close())
	assert.Equal(t, Closed, b.State())
	require.NoError(t, b.Close())
}

func TestBridge_StartAfterCloseErrors(t *testing.T) {
	b := NewBridge()
	require.NoError(t, b.Close())
	err := b.Start(context.Background(), nil, toolkit.NewRegistry())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSanitizeName_ReplacesSeparators(t *testing.T) {
	assert.Equal(t, "srv_my_tool_v1", sanitizeName("srv/my tool:v1"))
}

func TestSanitizeSchema_ObjectGetsPropertiesAndArrayGetsItems(t *testing.T) {
	obj := map[string]any{"type": "object"}
	sanitizeSchema(obj)
	props, ok := obj["properties"].(map[string]any)
	require.True(t, ok)
	assert.NotNil(t, props)

	arr := map[string]any{"type": "array"}
	sanitizeSchema(arr)
	items, ok := arr["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", items["type"])
}

func TestSanitizeSchema_RequiredNormalizedToStringSlice(t *testing.T) {
	s := map[string]any{"required": []any{"a", "b"}}
	sanitizeSchema(s)
	out, ok := s["required"].([]string)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestBridgeTool_JSONSchema_DefaultsWhenInputSchemaNil(t *testing.T) {
	tool := &bridgeTool{server: "s", tool: &mcppkg.Tool{Name: "t", Description: "d"}}
	out := tool.JSONSchema()
	assert.Equal(t, "d", out["description"])
	params, ok := out["parameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
}

func TestBridgeTool_CallErrorsAfterBridgeClosed(t *testing.T) {
	b := NewBridge()
	require.NoError(t, b.Close())
	tool := &bridgeTool{bridge: b, server: "s", tool: &mcppkg.Tool{Name: "t"}}
	_, err := tool.Call(context.Background(), nil)
	require.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, "MCP session is not connected.", err.Error())
}
