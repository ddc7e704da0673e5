// Package config loads hyperthink's runtime configuration: provider
// credentials, MCP server wiring, and the scaffolding loop's own parameters.
// Secrets and endpoints come from the environment (optionally via a .env
// file); everything awkward to express as an env var — MCP servers, per-model
// pricing tables, prompt overrides — comes from an optional YAML file layered
// on top.
package config

import (
	"fmt"
	"strings"

	"hyperthink/internal/llmprovider/anthropic"
	"hyperthink/internal/llmprovider/google"
	"hyperthink/internal/llmprovider/openai"
	"hyperthink/internal/mcpbridge"
	"hyperthink/internal/scaffold"
)

// ProviderConfig is the connection detail set for one LLM backend.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// PricingConfig is the per-provider, per-model cost table used for usage
// accounting. A model absent from its provider's table simply fails cost
// estimation (internal/usage treats that as "cost unknown", not an error).
type PricingConfig struct {
	OpenAI    map[string]openai.Pricing    `yaml:"openai,omitempty"`
	Anthropic map[string]anthropic.Pricing `yaml:"anthropic,omitempty"`
	Google    map[string]google.Pricing    `yaml:"google,omitempty"`
}

// Config is hyperthink's fully resolved runtime configuration.
type Config struct {
	LogPath  string `yaml:"-"`
	LogLevel string `yaml:"-"`

	OpenAI    ProviderConfig `yaml:"-"`
	Anthropic ProviderConfig `yaml:"-"`
	Google    ProviderConfig `yaml:"-"`

	// ProviderA and ProviderB name which backend serves Scaffold.ModelA and
	// Scaffold.ModelB respectively: one of "openai", "anthropic", "google".
	ProviderA string `yaml:"provider_a"`
	ProviderB string `yaml:"provider_b"`

	Pricing PricingConfig `yaml:"pricing"`

	MCPServers []mcpbridge.ServerConfig `yaml:"mcp_servers"`

	Scaffold scaffold.Config `yaml:"scaffold"`
}

var validProviders = map[string]bool{"openai": true, "anthropic": true, "google": true}

// Validate checks the cross-cutting invariants Load cannot express purely
// through zero-value defaults: a known provider per model slot, a
// scaffolding Config that already validates on its own terms, and that every
// configured MCP server carries enough to actually connect.
func (c Config) Validate() error {
	if !validProviders[c.ProviderA] {
		return fmt.Errorf("config: provider_a must be one of openai, anthropic, google (got %q)", c.ProviderA)
	}
	if !validProviders[c.ProviderB] {
		return fmt.Errorf("config: provider_b must be one of openai, anthropic, google (got %q)", c.ProviderB)
	}
	if err := c.Scaffold.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i, srv := range c.MCPServers {
		if strings.TrimSpace(srv.Name) == "" {
			return fmt.Errorf("config: mcp_servers[%d].name is required", i)
		}
		if strings.TrimSpace(srv.Command) == "" && strings.TrimSpace(srv.URL) == "" {
			return fmt.Errorf("config: mcp_servers[%d] (%s) needs a command or a url", i, srv.Name)
		}
	}
	return nil
}

// providerCredentials returns the ProviderConfig for name, or the zero value
// if name is not recognized (Validate has already rejected that case by the
// time this is called from cmd/hyperthink).
func (c Config) providerCredentials(name string) ProviderConfig {
	switch name {
	case "openai":
		return c.OpenAI
	case "anthropic":
		return c.Anthropic
	case "google":
		return c.Google
	default:
		return ProviderConfig{}
	}
}

// CredentialsA returns the provider credentials backing Scaffold.ModelA.
func (c Config) CredentialsA() ProviderConfig { return c.providerCredentials(c.ProviderA) }

// CredentialsB returns the provider credentials backing Scaffold.ModelB.
func (c Config) CredentialsB() ProviderConfig { return c.providerCredentials(c.ProviderB) }
