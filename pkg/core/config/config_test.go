package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

func TestDuration_UnmarshalText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"seconds", "30s", 30 * time.Second, false},
		{"minutes", "5m", 5 * time.Minute, false},
		{"complex", "1h30m", 90 * time.Minute, false},
		{"milliseconds", "100ms", 100 * time.Millisecond, false},
		{"invalid", "invalid", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))

			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalText() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && d.Duration != tt.expected {
				t.Errorf("UnmarshalText() = %v, want %v", d.Duration, tt.expected)
			}
		})
	}
}

func TestDuration_MarshalText(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"seconds", 30 * time.Second, "30s"},
		{"minutes", 5 * time.Minute, "5m0s"},
		{"milliseconds", 100 * time.Millisecond, "100ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Duration{tt.duration}
			result, err := d.MarshalText()

			if err != nil {
				t.Errorf("MarshalText() error = %v", err)
				return
			}

			if string(result) != tt.expected {
				t.Errorf("MarshalText() = %v, want %v", string(result), tt.expected)
			}
		})
	}
}

func TestDuration_YAML(t *testing.T) {
	var s struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 250ms\n"), &s); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if s.D.Duration != 250*time.Millisecond {
		t.Errorf("Duration = %v, want 250ms", s.D.Duration)
	}
}

func TestConfig_applyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.General.Name != "hatsuon" {
		t.Errorf("General.Name = %v, want hatsuon", cfg.General.Name)
	}
	if cfg.General.LogLevel != "info" {
		t.Errorf("General.LogLevel = %v, want info", cfg.General.LogLevel)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("Backend.BaseURL = %v", cfg.Backend.BaseURL)
	}
	if cfg.Backend.StreamURL != "ws://localhost:8000/api/v1/audio-stream/ws" {
		t.Errorf("Backend.StreamURL = %v", cfg.Backend.StreamURL)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Errorf("Audio = %d Hz / %d ch, want 16000 / 1", cfg.Audio.SampleRate, cfg.Audio.Channels)
	}
	if !cfg.EchoCancellationEnabled() || !cfg.NoiseSuppressionEnabled() {
		t.Error("echo cancellation and noise suppression should default to on")
	}
	if cfg.Streaming.Cadence.Duration != 100*time.Millisecond {
		t.Errorf("Streaming.Cadence = %v, want 100ms", cfg.Streaming.Cadence)
	}
	if cfg.Streaming.CloseGrace.Duration != time.Second {
		t.Errorf("Streaming.CloseGrace = %v, want 1s", cfg.Streaming.CloseGrace)
	}
	if cfg.Streaming.FeedbackTimeout.Duration != 30*time.Second {
		t.Errorf("Streaming.FeedbackTimeout = %v, want 30s", cfg.Streaming.FeedbackTimeout)
	}
	if len(cfg.Streaming.Formats) != 3 || cfg.Streaming.Formats[0] != "audio/ogg;codecs=opus" {
		t.Errorf("Streaming.Formats = %v", cfg.Streaming.Formats)
	}
	if cfg.Lesson.SuccessThreshold != 70 {
		t.Errorf("Lesson.SuccessThreshold = %v, want 70", cfg.Lesson.SuccessThreshold)
	}
	if !cfg.HistoryEnabled() {
		t.Error("history should default to enabled")
	}
	if cfg.History.Path != filepath.Join(cfg.General.DataDir, "history.db") {
		t.Errorf("History.Path = %v", cfg.History.Path)
	}
}

func TestConfig_applyDefaults_SecureStreamURL(t *testing.T) {
	cfg := &Config{Backend: BackendConfig{BaseURL: "https://speech.example.org"}}
	cfg.applyDefaults()

	if cfg.Backend.StreamURL != "wss://speech.example.org/api/v1/audio-stream/ws" {
		t.Errorf("Backend.StreamURL = %v", cfg.Backend.StreamURL)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Fatal("Load() expected error for non-existent file")
	}
	if !hterror.HasCode(err, hterror.CodeConfigError) {
		t.Errorf("error code = %v, want %v", hterror.GetCode(err), hterror.CodeConfigError)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[general]
name = "hatsuon-test"
data_dir = "` + tmpDir + `"

[backend]
base_url = "http://127.0.0.1:9000"

[audio]
noise_suppression = false

[streaming]
cadence = "250ms"
formats = ["audio/wav"]

[lesson]
success_threshold = 80
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.General.Name != "hatsuon-test" {
		t.Errorf("General.Name = %v, want hatsuon-test", cfg.General.Name)
	}
	if cfg.Backend.StreamURL != "ws://127.0.0.1:9000/api/v1/audio-stream/ws" {
		t.Errorf("Backend.StreamURL = %v", cfg.Backend.StreamURL)
	}
	if cfg.NoiseSuppressionEnabled() {
		t.Error("noise_suppression = false was ignored")
	}
	if !cfg.EchoCancellationEnabled() {
		t.Error("echo_cancellation should keep its default")
	}
	if cfg.Streaming.Cadence.Duration != 250*time.Millisecond {
		t.Errorf("Streaming.Cadence = %v, want 250ms", cfg.Streaming.Cadence)
	}
	if len(cfg.Streaming.Formats) != 1 || cfg.Streaming.Formats[0] != "audio/wav" {
		t.Errorf("Streaming.Formats = %v", cfg.Streaming.Formats)
	}
	if cfg.Lesson.SuccessThreshold != 80 {
		t.Errorf("Lesson.SuccessThreshold = %v, want 80", cfg.Lesson.SuccessThreshold)
	}

	// Defaults for missing values
	if cfg.Streaming.FeedbackTimeout.Duration != 30*time.Second {
		t.Errorf("Streaming.FeedbackTimeout = %v, want 30s (default)", cfg.Streaming.FeedbackTimeout)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
general:
  log_level: debug
streaming:
  close_grace: 500ms
  feedback_timeout: 10s
history:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.General.LogLevel != "debug" {
		t.Errorf("General.LogLevel = %v, want debug", cfg.General.LogLevel)
	}
	if cfg.Streaming.CloseGrace.Duration != 500*time.Millisecond {
		t.Errorf("Streaming.CloseGrace = %v, want 500ms", cfg.Streaming.CloseGrace)
	}
	if cfg.Streaming.FeedbackTimeout.Duration != 10*time.Second {
		t.Errorf("Streaming.FeedbackTimeout = %v, want 10s", cfg.Streaming.FeedbackTimeout)
	}
	if cfg.HistoryEnabled() {
		t.Error("history.enabled = false was ignored")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		key     string
	}{
		{"sample rate", "[audio]\nsample_rate = 44100\n", "audio.sample_rate"},
		{"stereo", "[audio]\nchannels = 2\n", "audio.channels"},
		{"frame length", "[audio]\nframe_ms = 25\n", "audio.frame_ms"},
		{"negative cadence", "[streaming]\ncadence = \"-1s\"\n", "streaming.cadence"},
		{"threshold", "[lesson]\nsuccess_threshold = 120\n", "lesson.success_threshold"},
		{"negative threshold", "[lesson]\nsuccess_threshold = -5\n", "lesson.success_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() expected validation error")
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err, tt.key)
			}
		})
	}
}

func TestValidate_ThresholdAgreesWithController(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantErr   bool
	}{
		{"zero", 0, true},
		{"negative", -1, true},
		{"lowest", 0.5, false},
		{"highest", 100, false},
		{"above", 100.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Lesson.SuccessThreshold = tt.threshold
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	// Zero in a file is the default, just as in lesson.NewController
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[lesson]\nsuccess_threshold = 0\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Lesson.SuccessThreshold != 70 {
		t.Errorf("Lesson.SuccessThreshold = %v, want 70", cfg.Lesson.SuccessThreshold)
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[general\nname="), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected parse error")
	}
}

func TestConfig_expandEnvVars(t *testing.T) {
	t.Setenv("HATSUON_TEST_DIR", "/tmp/hatsuon-data")

	cfg := &Config{
		General: GeneralConfig{DataDir: "$HATSUON_TEST_DIR"},
		History: HistoryConfig{Path: "${HATSUON_TEST_DIR}/h.db"},
	}

	cfg.expandEnvVars()

	if cfg.General.DataDir != "/tmp/hatsuon-data" {
		t.Errorf("DataDir = %v, want /tmp/hatsuon-data", cfg.General.DataDir)
	}
	if cfg.History.Path != "/tmp/hatsuon-data/h.db" {
		t.Errorf("History.Path = %v", cfg.History.Path)
	}
}

func TestLoadFromEnv_NoConfigFound(t *testing.T) {
	t.Setenv("HATSUON_CONFIG", "")
	t.Setenv("HOME", t.TempDir())

	originalWd, _ := os.Getwd()
	tmpDir := t.TempDir()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	defer os.Chdir(originalWd)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.General.Name != "hatsuon" {
		t.Errorf("expected defaults, got General.Name = %v", cfg.General.Name)
	}
}

func TestLoadFromEnv_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	if err := os.WriteFile(path, []byte("[general]\nname = \"from-env\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	t.Setenv("HATSUON_CONFIG", path)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.General.Name != "from-env" {
		t.Errorf("General.Name = %v, want from-env", cfg.General.Name)
	}
}

func TestConfig_LogFilePath(t *testing.T) {
	cfg := &Config{General: GeneralConfig{DataDir: "/data"}}
	if got := cfg.LogFilePath(); got != "/data/hatsuon.log" {
		t.Errorf("LogFilePath() = %v, want /data/hatsuon.log", got)
	}
	cfg.General.LogFile = "/var/log/h.log"
	if got := cfg.LogFilePath(); got != "/var/log/h.log" {
		t.Errorf("LogFilePath() = %v, want /var/log/h.log", got)
	}
}

func TestConfig_String(t *testing.T) {
	s := Default().String()
	if !strings.Contains(s, "[streaming]") || !strings.Contains(s, `cadence = "100ms"`) {
		t.Errorf("String() missing streaming section:\n%s", s)
	}
}
