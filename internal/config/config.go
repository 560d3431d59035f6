package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	// Serve Prometheus metrics on the HTTP listener at /metrics.
	Prometheus bool `yaml:"prometheus"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Node        NodeConfig       `yaml:"node"`
	Engine      EngineConfig     `yaml:"engine"`
	Prompt      PromptConfig     `yaml:"prompt"`
	Output      OutputConfig     `yaml:"output"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	LLM         LLMConfig        `yaml:"llm"`
	Service     ServiceConfig    `yaml:"service"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type NodeConfig struct {
	ID                string `yaml:"id"`
	Role              string `yaml:"role"`
	HeartbeatInterval int    `yaml:"heartbeat_interval_ms"`
	HeartbeatTimeout  int    `yaml:"heartbeat_timeout_ms"`
}

type EngineConfig struct {
	Mode        string `yaml:"mode"` // mock, exec
	Command     string `yaml:"command"`
	SampleRate  int    `yaml:"sample_rate"`
	MaxSessions int    `yaml:"max_sessions"`
	// Artificial per-segment delay of the mock engine.
	MockLatencyMS int `yaml:"mock_latency_ms"`
}

type PromptConfig struct {
	AudioPath  string `yaml:"audio_path"`
	Transcript string `yaml:"transcript"`
}

type OutputConfig struct {
	Directory string `yaml:"directory"`
	Extension string `yaml:"extension"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxRequests   int    `yaml:"max_requests"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type LLMConfig struct {
	Mode        string  `yaml:"mode"` // mock, ollama, exec
	Endpoint    string  `yaml:"endpoint"`
	Command     string  `yaml:"command"`
	Model       string  `yaml:"model"`
	System      string  `yaml:"system"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type ServiceConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxConcurrency int  `yaml:"max_concurrency"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-voice",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
			Prometheus:   true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Node: NodeConfig{
			ID:                "loqa-voice-1",
			Role:              "voice",
			HeartbeatInterval: 2000,
			HeartbeatTimeout:  6000,
		},
		Engine: EngineConfig{
			Mode:        "mock",
			SampleRate:  24000,
			MaxSessions: 1,
		},
		Prompt: PromptConfig{
			AudioPath:  "./asset/zero_shot_prompt.wav",
			Transcript: "希望你以后能够做的比我还好呦。",
		},
		Output: OutputConfig{
			Directory: "./output",
			Extension: "wav",
		},
		EventStore: EventStoreConfig{
			Path:          "./data/loqa-voice.db",
			RetentionMode: "persistent",
			RetentionDays: 30,
			MaxRequests:   10000,
		},
		LLM: LLMConfig{
			Mode:        "mock",
			Endpoint:    "http://localhost:11434",
			Model:       "llama3.2:latest",
			MaxTokens:   256,
			Temperature: 0.7,
		},
		Service: ServiceConfig{
			Enabled:        true,
			MaxConcurrency: 1,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "LOQA_VOICE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LOQA_VOICE_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQA_VOICE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQA_VOICE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_VOICE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_VOICE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_VOICE_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.Prometheus, "LOQA_VOICE_TELEMETRY_PROMETHEUS")
	overrideBool(&cfg.Bus.Embedded, "LOQA_VOICE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQA_VOICE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "LOQA_VOICE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_VOICE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQA_VOICE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_VOICE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_VOICE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_VOICE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_VOICE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Node.ID, "LOQA_VOICE_NODE_ID")
	overrideString(&cfg.Node.Role, "LOQA_VOICE_NODE_ROLE")
	overrideInt(&cfg.Node.HeartbeatInterval, "LOQA_VOICE_NODE_HEARTBEAT_INTERVAL_MS")
	overrideInt(&cfg.Node.HeartbeatTimeout, "LOQA_VOICE_NODE_HEARTBEAT_TIMEOUT_MS")
	overrideString(&cfg.Engine.Mode, "LOQA_VOICE_ENGINE_MODE")
	overrideString(&cfg.Engine.Command, "LOQA_VOICE_ENGINE_COMMAND")
	overrideInt(&cfg.Engine.SampleRate, "LOQA_VOICE_ENGINE_SAMPLE_RATE")
	overrideInt(&cfg.Engine.MaxSessions, "LOQA_VOICE_ENGINE_MAX_SESSIONS")
	overrideInt(&cfg.Engine.MockLatencyMS, "LOQA_VOICE_ENGINE_MOCK_LATENCY_MS")
	overrideString(&cfg.Prompt.AudioPath, "LOQA_VOICE_PROMPT_AUDIO_PATH")
	overrideString(&cfg.Prompt.Transcript, "LOQA_VOICE_PROMPT_TRANSCRIPT")
	overrideString(&cfg.Output.Directory, "LOQA_VOICE_OUTPUT_DIRECTORY")
	overrideString(&cfg.Output.Extension, "LOQA_VOICE_OUTPUT_EXTENSION")
	overrideString(&cfg.EventStore.Path, "LOQA_VOICE_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "LOQA_VOICE_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "LOQA_VOICE_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxRequests, "LOQA_VOICE_EVENT_STORE_MAX_REQUESTS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "LOQA_VOICE_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.LLM.Mode, "LOQA_VOICE_LLM_MODE")
	overrideString(&cfg.LLM.Endpoint, "LOQA_VOICE_LLM_ENDPOINT")
	overrideString(&cfg.LLM.Command, "LOQA_VOICE_LLM_COMMAND")
	overrideString(&cfg.LLM.Model, "LOQA_VOICE_LLM_MODEL")
	overrideString(&cfg.LLM.System, "LOQA_VOICE_LLM_SYSTEM")
	overrideInt(&cfg.LLM.MaxTokens, "LOQA_VOICE_LLM_MAX_TOKENS")
	overrideFloat(&cfg.LLM.Temperature, "LOQA_VOICE_LLM_TEMPERATURE")
	overrideBool(&cfg.Service.Enabled, "LOQA_VOICE_SERVICE_ENABLED")
	overrideInt(&cfg.Service.MaxConcurrency, "LOQA_VOICE_SERVICE_MAX_CONCURRENCY")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch strings.ToLower(cfg.Telemetry.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("telemetry.log_level must be one of debug|info|warn|error")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else if len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when embedded mode is disabled")
	}
	if cfg.Node.ID == "" {
		return errors.New("node.id must not be empty")
	}
	if cfg.Node.HeartbeatInterval <= 0 {
		return errors.New("node.heartbeat_interval_ms must be positive")
	}
	if cfg.Node.HeartbeatTimeout <= cfg.Node.HeartbeatInterval {
		return errors.New("node.heartbeat_timeout_ms must be greater than heartbeat interval")
	}
	switch cfg.Engine.Mode {
	case "mock", "exec":
	default:
		return errors.New("engine.mode must be one of mock|exec")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Engine.SampleRate <= 0 {
		return errors.New("engine.sample_rate must be positive")
	}
	if cfg.Engine.MaxSessions <= 0 {
		return errors.New("engine.max_sessions must be >= 1")
	}
	if cfg.Output.Directory == "" {
		return errors.New("output.directory must not be empty")
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch cfg.LLM.Mode {
	case "mock", "ollama", "exec":
	default:
		return errors.New("llm.mode must be one of mock|ollama|exec")
	}
	if cfg.LLM.Mode == "ollama" && cfg.LLM.Endpoint == "" {
		return errors.New("llm.endpoint must be set when mode=ollama")
	}
	if cfg.LLM.Mode == "exec" && cfg.LLM.Command == "" {
		return errors.New("llm.command must be set when mode=exec")
	}
	if cfg.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be >= 0")
	}
	if cfg.Service.Enabled && cfg.Service.MaxConcurrency <= 0 {
		return errors.New("service.max_concurrency must be >= 1")
	}
	return nil
}
