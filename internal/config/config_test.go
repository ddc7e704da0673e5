package config

import (
	"testing"

	"hyperthink/internal/mcpbridge"
	"hyperthink/internal/scaffold"
)

func validConfig() Config {
	cfg := Config{ProviderA: "openai", ProviderB: "anthropic"}
	cfg.Scaffold = scaffold.DefaultConfig()
	cfg.Scaffold.ModelA = "model-a"
	cfg.Scaffold.ModelB = "model-b"
	return cfg
}

func TestConfig_Validate_Success(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestConfig_Validate_RejectsUnknownProviderA(t *testing.T) {
	cfg := validConfig()
	cfg.ProviderA = "bedrock"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown provider_a")
	}
}

func TestConfig_Validate_RejectsUnknownProviderB(t *testing.T) {
	cfg := validConfig()
	cfg.ProviderB = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty provider_b")
	}
}

func TestConfig_Validate_RejectsMCPServerWithoutNameOrCommand(t *testing.T) {
	cfg := validConfig()
	cfg.MCPServers = []mcpbridge.ServerConfig{{Name: "fs"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for mcp server with no command or url")
	}

	cfg.MCPServers = []mcpbridge.ServerConfig{{Command: "mcp-fs"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for mcp server with no name")
	}
}

func TestConfig_Validate_AcceptsURLOnlyMCPServer(t *testing.T) {
	cfg := validConfig()
	cfg.MCPServers = []mcpbridge.ServerConfig{{Name: "remote", URL: "https://mcp.example.com"}}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCredentialsAB_RouteToConfiguredProvider(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAI.APIKey = "sk-openai"
	cfg.Anthropic.APIKey = "sk-anthropic"

	if got := cfg.CredentialsA().APIKey; got != "sk-openai" {
		t.Fatalf("expected openai key for provider_a, got %q", got)
	}
	if got := cfg.CredentialsB().APIKey; got != "sk-anthropic" {
		t.Fatalf("expected anthropic key for provider_b, got %q", got)
	}
}
