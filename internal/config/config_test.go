package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: plain\nretries: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("INTENTS_OUTPUT", "json")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), JSON: true, Plain: true, Retries: -1})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadDomainSettingsFromFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	body := `tokens:
  lists:
    - https://example.com/list.json
  ttl: 15m
quotes:
  refresh: 10s
  slippage_bps: 100
rpc:
  "42161": https://arb.example
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INTENTS_RPC_8453", "https://base.example")

	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(settings.TokenLists) != 1 || settings.TokenLists[0] != "https://example.com/list.json" {
		t.Fatalf("unexpected token lists: %v", settings.TokenLists)
	}
	if settings.TokenTTL != 15*time.Minute {
		t.Fatalf("unexpected token ttl: %s", settings.TokenTTL)
	}
	if settings.QuoteRefresh != 10*time.Second || settings.SlippageBps != 100 {
		t.Fatalf("unexpected quote settings: %s %d", settings.QuoteRefresh, settings.SlippageBps)
	}
	if settings.RPCURLs[42161] != "https://arb.example" || settings.RPCURLs[8453] != "https://base.example" {
		t.Fatalf("unexpected rpc overrides: %v", settings.RPCURLs)
	}
	if settings.Retries != 2 {
		t.Fatalf("expected default retries, got %d", settings.Retries)
	}
}

func TestLoadEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	tmp := t.TempDir()
	envPath := filepath.Join(tmp, "test.env")
	if err := os.WriteFile(envPath, []byte("INTENTS_LOG_LEVEL=debug\nINTENTS_QUOTE_REFRESH=5s\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("INTENTS_LOG_LEVEL", "info")
	t.Setenv("INTENTS_QUOTE_REFRESH", "")

	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "missing.yaml"), EnvFile: envPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.LogLevel != "info" {
		t.Fatalf("expected real environment to win, got %s", settings.LogLevel)
	}
}

func TestLoadRejectsMissingExplicitEnvFile(t *testing.T) {
	tmp := t.TempDir()
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(tmp, "missing.yaml"), EnvFile: filepath.Join(tmp, "nope.env"), Retries: -1})
	if err == nil {
		t.Fatal("expected error for missing explicit env file")
	}
}
