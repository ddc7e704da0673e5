// Command hyperthink runs the two-model scaffolding loop against a single
// prompt and prints the accepted answer plus a usage summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"hyperthink/internal/config"
	"hyperthink/internal/hlog"
	"hyperthink/internal/llmprovider"
	"hyperthink/internal/llmprovider/anthropic"
	"hyperthink/internal/llmprovider/google"
	"hyperthink/internal/llmprovider/openai"
	"hyperthink/internal/mcpbridge"
	"hyperthink/internal/scaffold"
	"hyperthink/internal/toolkit"
	"hyperthink/internal/toolkit/webfetch"
)

const mcpStartTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hyperthink: config:", err)
		os.Exit(2)
	}
	hlog.Init(cfg.LogPath, cfg.LogLevel)

	prompt := flag.String("prompt", "", "The request to run through the scaffolding loop")
	plan := flag.Bool("plan", false, "Decompose the request into subtasks and run them concurrently before synthesizing")
	checkpointPath := flag.String("checkpoint", "", "Path to save the notes-memory checkpoint to after the run; an existing file there is loaded and checked first, but the query itself starts from empty notes")
	flag.Parse()
	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "usage: hyperthink -prompt \"...\"")
		os.Exit(2)
	}

	if err := run(context.Background(), cfg, *prompt, *plan, *checkpointPath); err != nil {
		log.Fatal().Err(err).Msg("hyperthink")
	}
}

func run(ctx context.Context, cfg config.Config, prompt string, plan bool, checkpointPath string) error {
	log.Info().Str("provider_a", cfg.ProviderA).Str("provider_b", cfg.ProviderB).Msg("starting")

	completers, err := buildCompleters(cfg)
	if err != nil {
		return fmt.Errorf("build completers: %w", err)
	}

	registry := toolkit.NewRegistry()
	registry.Register(webfetch.NewTool(nil))

	bridge := mcpbridge.NewBridge()
	defer func() {
		if err := bridge.Close(); err != nil {
			log.Warn().Err(err).Msg("close mcp bridge")
		}
	}()
	if len(cfg.MCPServers) > 0 {
		startCtx, cancel := context.WithTimeout(ctx, mcpStartTimeout)
		defer cancel()
		if err := bridge.Start(startCtx, cfg.MCPServers, registry); err != nil {
			log.Warn().Err(err).Msg("mcp bridge start")
		}
	}

	ctrl, err := scaffold.NewController(cfg.Scaffold, completers[cfg.ProviderA], completers[cfg.ProviderB], registry)
	if err != nil {
		return fmt.Errorf("new controller: %w", err)
	}

	if checkpointPath != "" {
		if f, err := os.Open(checkpointPath); err == nil {
			err := ctrl.LoadCheckpoint(f)
			_ = f.Close()
			if err != nil {
				log.Warn().Err(err).Str("path", checkpointPath).Msg("load checkpoint")
			}
		}
	}

	var answer string
	if plan {
		answer, err = ctrl.Plan(ctx, prompt)
	} else {
		answer, err = ctrl.Query(ctx, prompt)
	}
	if err != nil {
		return err
	}

	fmt.Println(answer)

	stats := ctrl.Usage()
	log.Info().
		Int("prompt_tokens", stats.PromptTokens).
		Int("completion_tokens", stats.CompletionTokens).
		Int("total_tokens", stats.TotalTokens).
		Float64("cost_usd", stats.CostUSD).
		Msg("usage")

	if checkpointPath != "" {
		f, err := os.Create(checkpointPath)
		if err != nil {
			log.Warn().Err(err).Str("path", checkpointPath).Msg("create checkpoint")
			return nil
		}
		defer f.Close()
		if err := ctrl.SaveCheckpoint(f); err != nil {
			log.Warn().Err(err).Str("path", checkpointPath).Msg("save checkpoint")
		}
	}

	return nil
}

// buildCompleters constructs one llmprovider.Completer per backend named in
// cfg ("openai", "anthropic", "google"), keyed by that name so the
// controller can be wired to whichever two backends serve ModelA and ModelB.
func buildCompleters(cfg config.Config) (map[string]llmprovider.Completer, error) {
	out := make(map[string]llmprovider.Completer, 3)

	needed := map[string]bool{cfg.ProviderA: true, cfg.ProviderB: true}

	if needed["openai"] {
		cred := cfg.CredentialsA()
		if cfg.ProviderA != "openai" {
			cred = cfg.CredentialsB()
		}
		out["openai"] = openai.New(openai.Config{
			APIKey:  cred.APIKey,
			BaseURL: cred.BaseURL,
			Pricing: cfg.Pricing.OpenAI,
		}, nil)
	}
	if needed["anthropic"] {
		cred := cfg.CredentialsA()
		if cfg.ProviderA != "anthropic" {
			cred = cfg.CredentialsB()
		}
		out["anthropic"] = anthropic.New(anthropic.Config{
			APIKey:  cred.APIKey,
			BaseURL: cred.BaseURL,
			Pricing: cfg.Pricing.Anthropic,
		}, nil)
	}
	if needed["google"] {
		cred := cfg.CredentialsA()
		if cfg.ProviderA != "google" {
			cred = cfg.CredentialsB()
		}
		client, err := google.New(google.Config{
			APIKey:  cred.APIKey,
			BaseURL: cred.BaseURL,
			Pricing: cfg.Pricing.Google,
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("google client: %w", err)
		}
		out["google"] = client
	}

	return out, nil
}
