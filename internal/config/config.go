package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const envPrefix = "VOICEDOC_"

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	OTLPInsecure   bool   `yaml:"otlp_insecure" env:"OTLP_INSECURE"`
	PrometheusBind string `yaml:"prometheus_bind" env:"PROMETHEUS_BIND"`
}

type HTTPConfig struct {
	Bind           string `yaml:"bind" env:"BIND"`
	Port           int    `yaml:"port" env:"PORT"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name" env:"RUNTIME_NAME"`
	Environment string          `yaml:"environment" env:"RUNTIME_ENVIRONMENT"`
	HTTP        HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Telemetry   TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Bus         BusConfig       `yaml:"bus" envPrefix:"BUS_"`
	History     HistoryConfig   `yaml:"history" envPrefix:"HISTORY_"`
	Gemini      GeminiConfig    `yaml:"gemini" envPrefix:"GEMINI_"`
	STT         STTConfig       `yaml:"stt" envPrefix:"STT_"`
	TTS         TTSConfig       `yaml:"tts" envPrefix:"TTS_"`
	Readback    ReadbackConfig  `yaml:"readback" envPrefix:"READBACK_"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded" env:"EMBEDDED"`
	Port           int      `yaml:"port" env:"PORT"`
	Servers        []string `yaml:"servers" env:"SERVERS"`
	Username       string   `yaml:"username" env:"USERNAME"`
	Password       string   `yaml:"password" env:"PASSWORD"`
	Token          string   `yaml:"token" env:"TOKEN"`
	TLSInsecure    bool     `yaml:"tls_insecure" env:"TLS_INSECURE"`
	ConnectTimeout int      `yaml:"connect_timeout_ms" env:"CONNECT_TIMEOUT_MS"`
}

type HistoryConfig struct {
	Path          string `yaml:"path" env:"PATH"`
	RetentionMode string `yaml:"retention_mode" env:"RETENTION_MODE"`
	RetentionDays int    `yaml:"retention_days" env:"RETENTION_DAYS"`
	MaxSessions   int    `yaml:"max_sessions" env:"MAX_SESSIONS"`
	VacuumOnStart bool   `yaml:"vacuum_on_start" env:"VACUUM_ON_START"`
}

// GeminiConfig holds the credentials and endpoint of the hosted model API
// shared by the transcription and speech backends.
type GeminiConfig struct {
	APIKey            string `yaml:"api_key" env:"API_KEY"`
	BaseURL           string `yaml:"base_url" env:"BASE_URL"`
	APIVersion        string `yaml:"api_version" env:"API_VERSION"`
	TranscribeModel   string `yaml:"transcribe_model" env:"TRANSCRIBE_MODEL"`
	SpeechModel       string `yaml:"speech_model" env:"SPEECH_MODEL"`
	RequestTimeoutMS  int    `yaml:"request_timeout_ms" env:"REQUEST_TIMEOUT_MS"`
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"REQUESTS_PER_MINUTE"`
}

type STTConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Mode     string `yaml:"mode" env:"MODE"` // mock, gemini, exec
	Command  string `yaml:"command" env:"COMMAND"`
	Language string `yaml:"language" env:"LANGUAGE"`
}

type TTSConfig struct {
	Enabled         bool   `yaml:"enabled" env:"ENABLED"`
	Mode            string `yaml:"mode" env:"MODE"` // mock, gemini, exec
	Command         string `yaml:"command" env:"COMMAND"`
	Voice           string `yaml:"voice" env:"VOICE"`
	SampleRate      int    `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Channels        int    `yaml:"channels" env:"CHANNELS"`
	MaxSegmentChars int    `yaml:"max_segment_chars" env:"MAX_SEGMENT_CHARS"`
	RequestTimeoutS int    `yaml:"request_timeout_s" env:"REQUEST_TIMEOUT_S"`
}

type ReadbackConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	DefaultVoice string `yaml:"default_voice" env:"DEFAULT_VOICE"`
}

func Default() Config {
	return Config{
		RuntimeName: "voicedoc",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind:           "0.0.0.0",
			Port:           8080,
			MaxUploadBytes: 20 << 20,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		History: HistoryConfig{
			Path:          "./data/voicedoc-history.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Gemini: GeminiConfig{
			TranscribeModel:   "gemini-2.5-flash",
			SpeechModel:       "gemini-2.5-flash-preview-tts",
			RequestTimeoutMS:  120000,
			RequestsPerMinute: 0,
		},
		STT: STTConfig{
			Enabled:  true,
			Mode:     "mock",
			Language: "en",
		},
		TTS: TTSConfig{
			Enabled:         true,
			Mode:            "mock",
			Voice:           "Kore",
			SampleRate:      24000,
			Channels:        1,
			MaxSegmentChars: 3000,
			RequestTimeoutS: 120,
		},
		Readback: ReadbackConfig{
			Enabled:      true,
			DefaultVoice: "Kore",
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

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	// GEMINI_API_KEY is the variable the hosted API's own tooling reads.
	if cfg.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			cfg.Gemini.APIKey = strings.TrimSpace(value)
		}
	}
	for i, s := range cfg.Bus.Servers {
		cfg.Bus.Servers[i] = strings.TrimSpace(s)
	}
	return nil
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.max_upload_bytes must be positive")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.History.Path == "" {
		return errors.New("history.path must not be empty")
	}
	switch cfg.History.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("history.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	usesGemini := (cfg.STT.Enabled && cfg.STT.Mode == "gemini") || (cfg.TTS.Enabled && cfg.TTS.Mode == "gemini")
	if usesGemini && cfg.Gemini.APIKey == "" {
		return errors.New("gemini.api_key must be set when a gemini backend is enabled")
	}
	if cfg.Gemini.RequestsPerMinute < 0 {
		return errors.New("gemini.requests_per_minute must be >= 0")
	}
	if cfg.STT.Enabled {
		switch cfg.STT.Mode {
		case "mock", "gemini", "exec":
		default:
			return errors.New("stt.mode must be one of mock|gemini|exec")
		}
		if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	}
	if cfg.TTS.Enabled {
		switch cfg.TTS.Mode {
		case "mock", "gemini", "exec":
		default:
			return errors.New("tts.mode must be one of mock|gemini|exec")
		}
		if cfg.TTS.Mode == "exec" && cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
		if cfg.TTS.MaxSegmentChars <= 0 {
			return errors.New("tts.max_segment_chars must be positive")
		}
	}
	return nil
}
