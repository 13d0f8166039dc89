package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	TraceStdout  bool   `yaml:"trace_stdout"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Source      SourceConfig     `yaml:"source"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
	Sink        SinkConfig       `yaml:"sink"`
	Control     ControlConfig    `yaml:"control"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
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

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type SourceConfig struct {
	Mode        string   `yaml:"mode"` // exec, mock
	Command     string   `yaml:"command"`
	ModelPath   string   `yaml:"model_path"`
	ExtraArgs   []string `yaml:"extra_args"`
	StopGraceMS int      `yaml:"stop_grace_ms"`
	ScriptPath  string   `yaml:"script_path"`
	LineEveryMS int      `yaml:"line_every_ms"`

	// StartupGraceMS is how long a fresh recognizer must survive before a
	// session counts as started. Zero skips the check.
	StartupGraceMS int `yaml:"startup_grace_ms"`
}

type PipelineConfig struct {
	CorrectionDelayMS int `yaml:"correction_delay_ms"`
	MinBoundary       int `yaml:"min_boundary"`
	EmitTimeoutMS     int `yaml:"emit_timeout_ms"`
}

type SinkConfig struct {
	Mode       string `yaml:"mode"` // exec, stdout, webhook, none
	Command    string `yaml:"command"`
	WebhookURL string `yaml:"webhook_url"`
}

type ControlConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// DefaultModelPath mirrors the location the whisper model is installed to:
// $XDG_CONFIG_HOME/yapper/ggml-base.en.bin.
func DefaultModelPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "yapper", "ggml-base.en.bin")
}

// DefaultSocketPath places the control socket under $XDG_RUNTIME_DIR when available.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "yapper.sock")
	}
	return filepath.Join(os.TempDir(), "yapper.sock")
}

func Default() Config {
	return Config{
		RuntimeName: "yapper",
		Environment: "development",
		HTTP: HTTPConfig{
			Enabled: true,
			Bind:    "127.0.0.1",
			Port:    8089,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/yapper-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   1000,
		},
		Source: SourceConfig{
			Mode:        "exec",
			Command:     "whisper-cpp-stream",
			ModelPath:   DefaultModelPath(),
			StopGraceMS:    3000,
			LineEveryMS:    250,
			StartupGraceMS: 500,
		},
		Pipeline: PipelineConfig{
			CorrectionDelayMS: 800,
			MinBoundary:       3,
			EmitTimeoutMS:     5000,
		},
		Sink: SinkConfig{
			Mode:    "exec",
			Command: "wtype",
		},
		Control: ControlConfig{
			SocketPath: DefaultSocketPath(),
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
	overrideString(&cfg.RuntimeName, "YAPPER_RUNTIME_NAME")
	overrideString(&cfg.Environment, "YAPPER_RUNTIME_ENVIRONMENT")
	overrideBool(&cfg.HTTP.Enabled, "YAPPER_HTTP_ENABLED")
	overrideString(&cfg.HTTP.Bind, "YAPPER_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "YAPPER_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "YAPPER_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "YAPPER_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "YAPPER_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.TraceStdout, "YAPPER_TELEMETRY_TRACE_STDOUT")
	overrideBool(&cfg.Bus.Enabled, "YAPPER_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "YAPPER_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "YAPPER_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "YAPPER_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "YAPPER_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "YAPPER_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "YAPPER_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "YAPPER_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "YAPPER_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "YAPPER_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "YAPPER_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "YAPPER_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "YAPPER_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "YAPPER_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "YAPPER_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Source.Mode, "YAPPER_SOURCE_MODE")
	overrideString(&cfg.Source.Command, "YAPPER_SOURCE_COMMAND")
	overrideString(&cfg.Source.ModelPath, "YAPPER_SOURCE_MODEL_PATH")
	overrideStringSlice(&cfg.Source.ExtraArgs, "YAPPER_SOURCE_EXTRA_ARGS")
	overrideInt(&cfg.Source.StopGraceMS, "YAPPER_SOURCE_STOP_GRACE_MS")
	overrideInt(&cfg.Source.StartupGraceMS, "YAPPER_SOURCE_STARTUP_GRACE_MS")
	overrideString(&cfg.Source.ScriptPath, "YAPPER_SOURCE_SCRIPT_PATH")
	overrideInt(&cfg.Source.LineEveryMS, "YAPPER_SOURCE_LINE_EVERY_MS")
	overrideInt(&cfg.Pipeline.CorrectionDelayMS, "YAPPER_PIPELINE_CORRECTION_DELAY_MS")
	overrideInt(&cfg.Pipeline.MinBoundary, "YAPPER_PIPELINE_MIN_BOUNDARY")
	overrideInt(&cfg.Pipeline.EmitTimeoutMS, "YAPPER_PIPELINE_EMIT_TIMEOUT_MS")
	overrideString(&cfg.Sink.Mode, "YAPPER_SINK_MODE")
	overrideString(&cfg.Sink.Command, "YAPPER_SINK_COMMAND")
	overrideString(&cfg.Sink.WebhookURL, "YAPPER_SINK_WEBHOOK_URL")
	overrideString(&cfg.Control.SocketPath, "YAPPER_CONTROL_SOCKET_PATH")
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

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Enabled && (cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535) {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	switch cfg.Source.Mode {
	case "exec":
		if cfg.Source.Command == "" {
			return errors.New("source.command must be set when mode=exec")
		}
	case "mock":
	default:
		return errors.New("source.mode must be one of exec|mock")
	}
	if cfg.Source.StopGraceMS <= 0 {
		return errors.New("source.stop_grace_ms must be positive")
	}
	if cfg.Source.StartupGraceMS < 0 {
		return errors.New("source.startup_grace_ms must be >= 0")
	}
	if cfg.Pipeline.CorrectionDelayMS < 0 {
		return errors.New("pipeline.correction_delay_ms must be >= 0")
	}
	if cfg.Pipeline.MinBoundary < 0 {
		return errors.New("pipeline.min_boundary must be >= 0")
	}
	if cfg.Pipeline.EmitTimeoutMS <= 0 {
		return errors.New("pipeline.emit_timeout_ms must be positive")
	}
	switch cfg.Sink.Mode {
	case "exec":
		if cfg.Sink.Command == "" {
			return errors.New("sink.command must be set when mode=exec")
		}
	case "webhook":
		if cfg.Sink.WebhookURL == "" {
			return errors.New("sink.webhook_url must be set when mode=webhook")
		}
	case "stdout", "none":
	default:
		return errors.New("sink.mode must be one of exec|stdout|webhook|none")
	}
	if cfg.Control.SocketPath == "" {
		return errors.New("control.socket_path must not be empty")
	}
	return nil
}
