package config_test

import (
	"strings"
	"testing"

	"github.com/callsight/callsight/internal/config"
)

// loadErr runs yaml through the loader and returns the validation error.
func loadErr(t *testing.T, yaml string) error {
	t.Helper()
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	return err
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	err := loadErr(t, minimalYAML+`
server:
  log_level: verbose
`)
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_BufferSecondsOutOfRange(t *testing.T) {
	t.Parallel()
	for _, v := range []string{"0.2", "11.0"} {
		err := loadErr(t, minimalYAML+`
audio:
  buffer_seconds: `+v+"\n")
		if err == nil {
			t.Errorf("buffer_seconds=%s: expected error, got nil", v)
			continue
		}
		if !strings.Contains(err.Error(), "buffer_seconds") {
			t.Errorf("buffer_seconds=%s: error should mention the field, got: %v", v, err)
		}
	}
}

func TestValidate_SilenceThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	for _, v := range []string{"-0.1", "1.5"} {
		err := loadErr(t, minimalYAML+`
audio:
  silence_threshold: `+v+"\n")
		if err == nil {
			t.Errorf("silence_threshold=%s: expected error, got nil", v)
			continue
		}
		if !strings.Contains(err.Error(), "silence_threshold") {
			t.Errorf("silence_threshold=%s: error should mention the field, got: %v", v, err)
		}
	}
}

func TestValidate_SampleRateRange(t *testing.T) {
	t.Parallel()
	if err := loadErr(t, minimalYAML+`
audio:
  sample_rate: 44100
`); err != nil {
		t.Errorf("sample_rate=44100 should be accepted, got: %v", err)
	}
	if err := loadErr(t, minimalYAML+`
audio:
  sample_rate: 7000
`); err == nil {
		t.Error("sample_rate=7000: expected error, got nil")
	}
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	t.Parallel()
	err := loadErr(t, `
transcription:
  api_key: sk-transcribe
  temperature: 1.5
insights:
  api_key: sk-insights
`)
	if err == nil {
		t.Fatal("expected error for temperature out of range, got nil")
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestValidate_NegativeTimeouts(t *testing.T) {
	t.Parallel()
	err := loadErr(t, `
transcription:
  api_key: sk-transcribe
  timeout_seconds: -1
insights:
  api_key: sk-insights
  timeout_seconds: -5
`)
	if err == nil {
		t.Fatal("expected error for negative timeouts, got nil")
	}
	if !strings.Contains(err.Error(), "transcription.timeout_seconds") {
		t.Errorf("error should mention transcription.timeout_seconds, got: %v", err)
	}
	if !strings.Contains(err.Error(), "insights.timeout_seconds") {
		t.Errorf("error should mention insights.timeout_seconds, got: %v", err)
	}
}

func TestValidate_InvalidStorageDriver(t *testing.T) {
	t.Parallel()
	err := loadErr(t, minimalYAML+`
storage:
  driver: cassandra
`)
	if err == nil {
		t.Fatal("expected error for invalid storage driver, got nil")
	}
	if !strings.Contains(err.Error(), "storage.driver") {
		t.Errorf("error should mention storage.driver, got: %v", err)
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()
	err := loadErr(t, minimalYAML+`
storage:
  driver: postgres
`)
	if err == nil {
		t.Fatal("expected error for postgres driver without DSN, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestValidate_WebhookBaseURLScheme(t *testing.T) {
	t.Parallel()
	err := loadErr(t, minimalYAML+`
server:
  webhook_base_url: calls.example.com
`)
	if err == nil {
		t.Fatal("expected error for schemeless webhook_base_url, got nil")
	}
	if !strings.Contains(err.Error(), "webhook_base_url") {
		t.Errorf("error should mention webhook_base_url, got: %v", err)
	}
}

func TestValidate_AuthTokenRequiresBaseURL(t *testing.T) {
	t.Parallel()
	err := loadErr(t, minimalYAML+`
twilio:
  auth_token: tw-secret
`)
	if err == nil {
		t.Fatal("expected error for auth_token without webhook_base_url, got nil")
	}
	if !strings.Contains(err.Error(), "webhook_base_url") {
		t.Errorf("error should mention webhook_base_url, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	err := loadErr(t, `
audio:
  buffer_seconds: 0.1
storage:
  driver: postgres
`)
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	// All violations are reported in one joined error.
	for _, want := range []string{"buffer_seconds", "postgres_dsn", "transcription.api_key", "insights.api_key"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_DirectCallOnZeroConfig(t *testing.T) {
	t.Parallel()
	// Validate on a hand-built config does not apply defaults first.
	err := config.Validate(&config.Config{})
	if err == nil {
		t.Fatal("expected errors for zero config, got nil")
	}
}
