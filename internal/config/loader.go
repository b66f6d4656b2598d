package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [Load] and [LoadFromReader] before validation.
const (
	DefaultListenAddr            = ":8080"
	DefaultBufferSeconds         = 4.0
	DefaultSilenceThreshold      = 0.9
	DefaultSampleRate            = 8000
	DefaultTranscriptionEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	DefaultTranscriptionModel    = "whisper-1"
	DefaultTranscriptionTimeout  = 60 // seconds
	DefaultInsightsModel         = "gpt-4o-mini"
	DefaultInsightsTimeout       = 90 // seconds
	DefaultServiceName           = "callsight"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied. It is a convenience wrapper around
// [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Unknown YAML keys are rejected. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields in cfg before validation. An explicit
// zero silence threshold is preserved; only the nil pointer is defaulted.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	if cfg.Audio.BufferSeconds == 0 {
		cfg.Audio.BufferSeconds = DefaultBufferSeconds
	}
	if cfg.Audio.SilenceThreshold == nil {
		threshold := DefaultSilenceThreshold
		cfg.Audio.SilenceThreshold = &threshold
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}

	if cfg.Transcription.Endpoint == "" {
		cfg.Transcription.Endpoint = DefaultTranscriptionEndpoint
	}
	if cfg.Transcription.Model == "" {
		cfg.Transcription.Model = DefaultTranscriptionModel
	}
	if cfg.Transcription.TimeoutSeconds == 0 {
		cfg.Transcription.TimeoutSeconds = DefaultTranscriptionTimeout
	}

	if cfg.Insights.DefaultModel == "" {
		cfg.Insights.DefaultModel = DefaultInsightsModel
	}
	if cfg.Insights.TimeoutSeconds == 0 {
		cfg.Insights.TimeoutSeconds = DefaultInsightsTimeout
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if u := cfg.Server.WebhookBaseURL; u != "" {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("server.webhook_base_url %q must start with http:// or https://", u))
		}
	}
	if cfg.Twilio.AuthToken != "" && cfg.Server.WebhookBaseURL == "" {
		errs = append(errs, errors.New("server.webhook_base_url is required when twilio.auth_token is set"))
	}

	// Audio
	if cfg.Audio.BufferSeconds < 0.5 || cfg.Audio.BufferSeconds > 10.0 {
		errs = append(errs, fmt.Errorf("audio.buffer_seconds %.2f is out of range [0.5, 10.0]", cfg.Audio.BufferSeconds))
	}
	if t := cfg.Audio.SilenceThreshold; t != nil && (*t < 0.0 || *t > 1.0) {
		errs = append(errs, fmt.Errorf("audio.silence_threshold %.2f is out of range [0.0, 1.0]", *t))
	}
	if cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 48000]", cfg.Audio.SampleRate))
	}

	// Transcription
	if cfg.Transcription.APIKey == "" {
		errs = append(errs, errors.New("transcription.api_key is required"))
	}
	if t := cfg.Transcription.Temperature; t < 0.0 || t > 1.0 {
		errs = append(errs, fmt.Errorf("transcription.temperature %.2f is out of range [0.0, 1.0]", t))
	}
	if cfg.Transcription.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("transcription.timeout_seconds %d must not be negative", cfg.Transcription.TimeoutSeconds))
	}

	// Insights
	if cfg.Insights.APIKey == "" {
		errs = append(errs, errors.New("insights.api_key is required"))
	}
	if cfg.Insights.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("insights.timeout_seconds %d must not be negative", cfg.Insights.TimeoutSeconds))
	}

	// Storage
	if !cfg.Storage.Driver.IsValid() {
		errs = append(errs, fmt.Errorf("storage.driver %q is invalid; valid values: memory, postgres", cfg.Storage.Driver))
	}
	if cfg.Storage.Driver == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.driver is postgres"))
	}

	return errors.Join(errs...)
}
