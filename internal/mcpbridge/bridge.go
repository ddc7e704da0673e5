// Package mcpbridge connects the scaffolding controller's tool registry to
// one or more Model Context Protocol servers, using the official
// modelcontextprotocol/go-sdk client. A Bridge owns a four-state lifecycle
// (Unstarted -> Starting -> Running -> Closed) and merges every connected
// server's tools into a toolkit.Registry under a "<server>_<tool>" name.
package mcpbridge

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"hyperthink/internal/toolkit"
)

// State is a Bridge's lifecycle position.
type State int

const (
	Unstarted State = iota
	Starting
	Running
	Closed
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// ServerConfig describes one MCP server to connect to: either a local
// command (stdio transport) or a remote URL (streamable HTTP transport).
// At least one of Command or URL must be set; if both are, Command is used.
type ServerConfig struct {
	Name        string
	Command     string
	Args        []string
	Env         map[string]string
	URL         string
	Headers     map[string]string
	BearerToken string
}

// ErrSessionClosed is returned by Start, and by a bridge tool's Call, once the
// Bridge is closed (a repeated Close returns nil). Its
// text is the exact tool-result string a closed bridgeTool.Call produces
// once the registry prefixes it with "Error: ".
var ErrSessionClosed = fmt.Errorf("MCP session is not connected.")

// ErrAlreadyStarted is returned by Start when called more than once on the
// same Bridge.
var ErrAlreadyStarted = fmt.Errorf("mcpbridge: already started")

// ExecutorTimeout bounds a single tool call; it is applied around every
// CallTool regardless of the caller's own context deadline.
const ExecutorTimeout = 60 * time.Second

// CloseTimeout bounds how long Close waits for sessions to end cleanly
// before giving up.
const CloseTimeout = 10 * time.Second

// Bridge manages MCP client sessions for one scaffolding run.
type Bridge struct {
	mu        sync.Mutex
	state     State
	sessions  map[string]*mcppkg.ClientSession
	toolNames map[string][]string
	seenNames map[string]bool
}

// NewBridge returns an Unstarted Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		state:     Unstarted,
		sessions:  map[string]*mcppkg.ClientSession{},
		toolNames: map[string][]string{},
		seenNames: map[string]bool{},
	}
}

// State reports the Bridge's current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start connects to every configured server and registers its tools into reg.
// A server that fails to connect is logged and skipped rather than failing
// the whole bridge — a single misconfigured MCP server should not prevent
// the scaffolding controller from running with whatever tools did connect.
// Start may only be called once; call it again only after NewBridge.
func (b *Bridge) Start(ctx context.Context, servers []ServerConfig, reg toolkit.Registry) error {
	b.mu.Lock()
	if b.state == Closed {
		b.mu.Unlock()
		return ErrSessionClosed
	}
	if b.state != Unstarted {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.state = Starting
	b.mu.Unlock()

	for _, srv := range servers {
		if err := b.connectOne(ctx, srv, reg); err != nil {
			log.Warn().Str("server", srv.Name).Err(err).Msg("mcpbridge_connect_failed")
			continue
		}
	}

	b.mu.Lock()
	b.state = Running
	b.mu.Unlock()
	return nil
}

func (b *Bridge) connectOne(ctx context.Context, srv ServerConfig, reg toolkit.Registry) error {
	if strings.TrimSpace(srv.Name) == "" {
		return fmt.Errorf("server name required")
	}

	client := mcppkg.NewClient(&mcppkg.Implementation{Name: "hyperthink", Version: "0"}, nil)

	var session *mcppkg.ClientSession
	var err error
	switch {
	case strings.TrimSpace(srv.Command) != "":
		cmd, cerr := buildCommand(srv)
		if cerr != nil {
			return cerr
		}
		session, err = client.Connect(ctx, &mcppkg.CommandTransport{Command: cmd}, nil)
	case strings.TrimSpace(srv.URL) != "":
		transport := &mcppkg.StreamableClientTransport{Endpoint: srv.URL, HTTPClient: buildHTTPClient(srv)}
		session, err = client.Connect(ctx, transport, nil)
	default:
		return fmt.Errorf("server %q: neither command nor url configured", srv.Name)
	}
	if err != nil {
		return fmt.Errorf("connect %q: %w", srv.Name, err)
	}

	b.mu.Lock()
	b.sessions[srv.Name] = session
	b.mu.Unlock()

	var names []string
	for tool, terr := range session.Tools(ctx, nil) {
		if terr != nil {
			break
		}
		t := &bridgeTool{bridge: b, server: srv.Name, session: session, tool: tool}
		name := t.Name()

		b.mu.Lock()
		collision := b.seenNames[name]
		b.seenNames[name] = true
		b.mu.Unlock()
		if collision {
			log.Warn().Str("tool", name).Str("server", srv.Name).Msg("mcpbridge_tool_name_collision_overwritten")
		}

		reg.Register(t)
		names = append(names, name)
	}
	b.mu.Lock()
	b.toolNames[srv.Name] = names
	b.mu.Unlock()
	return nil
}

// Close ends every session, waiting up to CloseTimeout, and transitions the
// Bridge to Closed. Close is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.state == Closed {
		b.mu.Unlock()
		return nil
	}
	sessions := make([]*mcppkg.ClientSession, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.state = Closed
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, s := range sessions {
			_ = s.Close()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(CloseTimeout):
		return fmt.Errorf("mcpbridge: close timed out after %s", CloseTimeout)
	}
}

func buildCommand(srv ServerConfig) (*exec.Cmd, error) {
	clean := filepath.Clean(srv.Command)
	if clean != srv.Command || filepath.IsAbs(clean) || strings.Contains(clean, string(os.PathSeparator)+"..") {
		return nil, fmt.Errorf("invalid command path %q", srv.Command)
	}
	cmd := exec.Command(clean, srv.Args...)
	if len(srv.Env) > 0 {
		env := os.Environ()
		for k, v := range srv.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}
	return cmd, nil
}

func buildHTTPClient(srv ServerConfig) *http.Client {
	tr := &http.Transport{TLSClientConfig: &tls.Config{}}
	rt := &headerRoundTripper{base: tr, headers: srv.Headers, bearer: strings.TrimSpace(srv.BearerToken)}
	return &http.Client{Transport: rt}
}

type headerRoundTripper struct {
	base    http.RoundTripper
	headers map[string]string
	bearer  string
}

func (t *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "application/json, text/event-stream")
	}
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	if t.bearer != "" && r.Header.Get("Authorization") == "" {
		r.Header.Set("Authorization", "Bearer "+t.bearer)
	}
	return t.base.RoundTrip(r)
}
