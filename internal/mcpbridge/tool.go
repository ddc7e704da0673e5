package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"
)

// bridgeTool adapts one MCP server tool to the toolkit.Tool interface.
type bridgeTool struct {
	bridge  *Bridge
	server  string
	session *mcppkg.ClientSession
	tool    *mcppkg.Tool
}

func (t *bridgeTool) Name() string {
	return sanitizeName(t.server + "_" + t.tool.Name)
}

func (t *bridgeTool) JSONSchema() map[string]any {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	if t.tool.InputSchema != nil {
		if b, err := json.Marshal(t.tool.InputSchema); err == nil {
			var m map[string]any
			if json.Unmarshal(b, &m) == nil && m != nil {
				for k, v := range m {
					params[k] = v
				}
			}
		}
	}
	sanitizeSchema(params)
	return map[string]any{
		"description": t.tool.Description,
		"parameters":  params,
	}
}

// Call returns the remote tool's text content on success. A failed remote
// call, a tool-reported failure (res.IsError), or the bridge already being
// closed all come back as a Go error, which the registry turns into the
// "Error: "-prefixed tool result the model sees — for a closed bridge this
// is the exact "Error: MCP session is not connected." text ErrSessionClosed
// carries.
func (t *bridgeTool) Call(ctx context.Context, raw json.RawMessage) (string, error) {
	if t.bridge.State() == Closed {
		return "", ErrSessionClosed
	}

	ctx, cancel := context.WithTimeout(ctx, ExecutorTimeout)
	defer cancel()

	var args any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	if args == nil {
		args = map[string]any{}
	}

	res, err := t.session.CallTool(ctx, &mcppkg.CallToolParams{Name: t.tool.Name, Arguments: args})
	if err != nil {
		return "", err
	}

	var texts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcppkg.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	text := strings.Join(texts, "\n")
	if res.IsError {
		if text == "" {
			text = "remote tool reported failure"
		}
		return "", errors.New(text)
	}
	return text, nil
}

func sanitizeName(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

// sanitizeSchema normalizes a JSON schema map in place so every provider
// adapter's stricter function-tool requirements are met: object schemas
// always carry a properties map, array schemas always carry an items
// schema, and required is always a []string.
func sanitizeSchema(s map[string]any) {
	hasType := func(v any, want string) bool {
		switch tt := v.(type) {
		case string:
			return tt == want
		case []any:
			for _, x := range tt {
				if xs, ok := x.(string); ok && xs == want {
					return true
				}
			}
		}
		return false
	}

	if hasType(s["type"], "object") {
		if _, ok := s["properties"].(map[string]any); !ok {
			s["properties"] = map[string]any{}
		}
	}
	if hasType(s["type"], "array") {
		if _, ok := s["items"].(map[string]any); !ok {
			s["items"] = map[string]any{"type": "string"}
		}
	}
	if props, ok := s["properties"].(map[string]any); ok {
		for _, v := range props {
			if m, ok := v.(map[string]any); ok {
				sanitizeSchema(m)
			}
		}
	}
	if it, ok := s["items"].(map[string]any); ok {
		sanitizeSchema(it)
	}
	for _, key := range []string{"oneOf", "anyOf", "allOf"} {
		if arr, ok := s[key].([]any); ok {
			for _, v := range arr {
				if m, ok := v.(map[string]any); ok {
					sanitizeSchema(m)
				}
			}
		}
	}
	if req, ok := s["required"].([]any); ok {
		out := make([]string, 0, len(req))
		for _, x := range req {
			if xs, ok := x.(string); ok {
				out = append(out, xs)
			}
		}
		s["required"] = out
	}
}
