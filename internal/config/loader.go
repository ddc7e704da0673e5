package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"

	"hyperthink/internal/mcpbridge"
	"hyperthink/internal/scaffold"
)

// yamlOverlay is the subset of Config that comes from the optional YAML file
// rather than the environment: MCP servers, pricing tables, prompt/parameter
// overrides for the scaffolding loop, and which provider backs each model.
type yamlOverlay struct {
	ProviderA  string             `yaml:"provider_a"`
	ProviderB  string             `yaml:"provider_b"`
	Pricing    PricingConfig      `yaml:"pricing"`
	MCPServers []mcpServerOverlay `yaml:"mcp_servers"`
	Scaffold   scaffoldOverlay    `yaml:"scaffold"`
}

type mcpServerOverlay struct {
	Name        string            `yaml:"name"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	URL         string            `yaml:"url"`
	Headers     map[string]string `yaml:"headers"`
	BearerToken string            `yaml:"bearer_token"`
}

func (o mcpServerOverlay) toServerConfig() mcpbridge.ServerConfig {
	return mcpbridge.ServerConfig{
		Name:        strings.TrimSpace(o.Name),
		Command:     strings.TrimSpace(o.Command),
		Args:        append([]string{}, o.Args...),
		Env:         o.Env,
		URL:         strings.TrimSpace(o.URL),
		Headers:     o.Headers,
		BearerToken: strings.TrimSpace(o.BearerToken),
	}
}

// scaffoldOverlay mirrors scaffold.Config with YAML tags; Load copies every
// non-zero field onto a scaffold.DefaultConfig() base so an omitted field
// keeps its default rather than zeroing out. Pointer fields distinguish
// "not set in YAML" from "explicitly set to zero".
type scaffoldOverlay struct {
	ModelA string `yaml:"model_a"`
	ModelB string `yaml:"model_b"`

	MaxStateSize  int `yaml:"max_state_size"`
	MaxIterations int `yaml:"max_iterations"`

	TempAStart       *float64 `yaml:"temp_a_start"`
	TempAEnd         *float64 `yaml:"temp_a_end"`
	TempAAnnealSteps int      `yaml:"temp_a_anneal_steps"`
	TempB            *float64 `yaml:"temp_b"`

	TopPA float64 `yaml:"top_p_a"`
	TopPB float64 `yaml:"top_p_b"`
	TopKA *int    `yaml:"top_k_a"`
	TopKB *int    `yaml:"top_k_b"`

	ReasoningEffortA string `yaml:"reasoning_effort_a"`
	ReasoningEffortB string `yaml:"reasoning_effort_b"`

	MaxToolIterations *int `yaml:"max_tool_iterations"`

	StarterPrompt  string `yaml:"starter_prompt"`
	ReviewerPrompt string `yaml:"reviewer_prompt"`
}

func (o scaffoldOverlay) applyTo(cfg scaffold.Config) scaffold.Config {
	if o.ModelA != "" {
		cfg.ModelA = o.ModelA
	}
	if o.ModelB != "" {
		cfg.ModelB = o.ModelB
	}
	if o.MaxStateSize > 0 {
		cfg.MaxStateSize = o.MaxStateSize
	}
	if o.MaxIterations > 0 {
		cfg.MaxIterations = o.MaxIterations
	}
	if o.TempAStart != nil {
		cfg.TempAStart = *o.TempAStart
	}
	if o.TempAEnd != nil {
		cfg.TempAEnd = *o.TempAEnd
	}
	if o.TempAAnnealSteps > 0 {
		cfg.TempAAnnealSteps = o.TempAAnnealSteps
	}
	if o.TempB != nil {
		cfg.TempB = *o.TempB
	}
	if o.TopPA > 0 {
		cfg.TopPA = o.TopPA
	}
	if o.TopPB > 0 {
		cfg.TopPB = o.TopPB
	}
	if o.TopKA != nil {
		cfg.TopKA = o.TopKA
	}
	if o.TopKB != nil {
		cfg.TopKB = o.TopKB
	}
	if o.ReasoningEffortA != "" {
		cfg.ReasoningEffortA = o.ReasoningEffortA
	}
	if o.ReasoningEffortB != "" {
		cfg.ReasoningEffortB = o.ReasoningEffortB
	}
	if o.MaxToolIterations != nil {
		cfg.MaxToolIterations = *o.MaxToolIterations
	}
	if o.StarterPrompt != "" {
		cfg.StarterPrompt = o.StarterPrompt
	}
	if o.ReviewerPrompt != "" {
		cfg.ReviewerPrompt = o.ReviewerPrompt
	}
	return cfg
}

// Load builds a Config from the environment (optionally via a .env file in
// the working directory) plus an optional YAML file named by the
// HYPERTHINK_CONFIG env var (default "config.yaml", silently skipped if
// absent). Environment variables supply provider credentials, since those
// are secrets that belong out of version control; the YAML file supplies
// everything structural.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		LogPath:  strings.TrimSpace(os.Getenv("LOG_PATH")),
		LogLevel: strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		OpenAI: ProviderConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		},
		Anthropic: ProviderConfig{
			APIKey:  strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")),
		},
		Google: ProviderConfig{
			APIKey:  strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("GOOGLE_BASE_URL")),
		},
		Scaffold: scaffold.DefaultConfig(),
	}

	path := strings.TrimSpace(os.Getenv("HYPERTHINK_CONFIG"))
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var overlay yamlOverlay
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.ProviderA = overlay.ProviderA
		cfg.ProviderB = overlay.ProviderB
		cfg.Pricing = overlay.Pricing
		cfg.Scaffold = overlay.Scaffold.applyTo(cfg.Scaffold)
		for _, srv := range overlay.MCPServers {
			cfg.MCPServers = append(cfg.MCPServers, srv.toServerConfig())
		}
	case os.IsNotExist(err):
		// optional
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if cfg.ProviderA == "" {
		cfg.ProviderA = "openai"
	}
	if cfg.ProviderB == "" {
		cfg.ProviderB = "openai"
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cred := cfg.CredentialsA(); strings.TrimSpace(cred.APIKey) == "" {
		return Config{}, fmt.Errorf("config: no API key configured for provider_a %q", cfg.ProviderA)
	}
	if cred := cfg.CredentialsB(); strings.TrimSpace(cred.APIKey) == "" {
		return Config{}, fmt.Errorf("config: no API key configured for provider_b %q", cfg.ProviderB)
	}

	return cfg, nil
}
