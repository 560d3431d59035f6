package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.Engine.Mode != "mock" {
		t.Fatalf("expected mock engine by default, got %q", cfg.Engine.Mode)
	}
	if cfg.Prompt.AudioPath != "./asset/zero_shot_prompt.wav" {
		t.Fatalf("unexpected default prompt path %q", cfg.Prompt.AudioPath)
	}
	if cfg.Service.MaxConcurrency != 1 {
		t.Fatalf("expected single request concurrency, got %d", cfg.Service.MaxConcurrency)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.yaml")
	data := []byte(`engine:
  mode: exec
  command: "python worker.py --model pretrained_models/CosyVoice2-0.5B"
  sample_rate: 22050
output:
  directory: /tmp/voice-out
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.Mode != "exec" || cfg.Engine.SampleRate != 22050 {
		t.Fatalf("engine section not applied: %+v", cfg.Engine)
	}
	if cfg.Output.Directory != "/tmp/voice-out" {
		t.Fatalf("output directory not applied: %q", cfg.Output.Directory)
	}
	if cfg.Output.Extension != "wav" {
		t.Fatalf("expected default extension to survive partial file, got %q", cfg.Output.Extension)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQA_VOICE_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQA_VOICE_BUS_USERNAME", "alice")
	t.Setenv("LOQA_VOICE_BUS_PASSWORD", "secret")
	t.Setenv("LOQA_VOICE_BUS_TLS_INSECURE", "true")
	t.Setenv("LOQA_VOICE_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("LOQA_VOICE_NODE_ID", "test-node")
	t.Setenv("LOQA_VOICE_ENGINE_SAMPLE_RATE", "16000")
	t.Setenv("LOQA_VOICE_ENGINE_MAX_SESSIONS", "2")
	t.Setenv("LOQA_VOICE_PROMPT_TRANSCRIPT", "ok")
	t.Setenv("LOQA_VOICE_OUTPUT_DIRECTORY", "./out")
	t.Setenv("LOQA_VOICE_EVENT_STORE_RETENTION_MODE", "ephemeral")
	t.Setenv("LOQA_VOICE_EVENT_STORE_MAX_REQUESTS", "123")
	t.Setenv("LOQA_VOICE_LLM_TEMPERATURE", "0.2")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if !cfg.Bus.TLSInsecure {
		t.Fatal("expected tls insecure override true")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Node.ID != "test-node" {
		t.Fatalf("expected node id override")
	}
	if cfg.Engine.SampleRate != 16000 || cfg.Engine.MaxSessions != 2 {
		t.Fatalf("expected engine overrides, got %+v", cfg.Engine)
	}
	if cfg.Prompt.Transcript != "ok" {
		t.Fatalf("expected prompt transcript override")
	}
	if cfg.Output.Directory != "./out" {
		t.Fatalf("expected output directory override")
	}
	if cfg.EventStore.RetentionMode != "ephemeral" || cfg.EventStore.MaxRequests != 123 {
		t.Fatalf("expected event store overrides, got %+v", cfg.EventStore)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Fatalf("expected llm temperature override, got %v", cfg.LLM.Temperature)
	}
}

func TestValidateExecRequiresCommand(t *testing.T) {
	t.Setenv("LOQA_VOICE_ENGINE_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error when exec engine has no command")
	}
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := Default()
	cfg.Engine.Mode = "cuda"
	if err := validate(cfg); err == nil {
		t.Fatal("expected error for unknown engine mode")
	}
}
