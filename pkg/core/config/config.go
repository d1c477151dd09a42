// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     config
// Description: Application configuration loaded from TOML or YAML files
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

// Config holds the complete application configuration
type Config struct {
	General   GeneralConfig   `toml:"general" yaml:"general"`
	Backend   BackendConfig   `toml:"backend" yaml:"backend"`
	Audio     AudioConfig     `toml:"audio" yaml:"audio"`
	Streaming StreamingConfig `toml:"streaming" yaml:"streaming"`
	Lesson    LessonConfig    `toml:"lesson" yaml:"lesson"`
	History   HistoryConfig   `toml:"history" yaml:"history"`
}

// GeneralConfig holds general application settings
type GeneralConfig struct {
	Name      string `toml:"name" yaml:"name"`
	DataDir   string `toml:"data_dir" yaml:"data_dir"`
	LogLevel  string `toml:"log_level" yaml:"log_level"`
	LogFormat string `toml:"log_format" yaml:"log_format"`
	LogFile   string `toml:"log_file" yaml:"log_file"`
}

// BackendConfig holds the scoring backend endpoints and timeouts
type BackendConfig struct {
	BaseURL            string   `toml:"base_url" yaml:"base_url"`
	StreamURL          string   `toml:"stream_url" yaml:"stream_url"`
	CatalogPath        string   `toml:"catalog_path" yaml:"catalog_path"`
	ReferenceAudioPath string   `toml:"reference_audio_path" yaml:"reference_audio_path"`
	RequestTimeout     Duration `toml:"request_timeout" yaml:"request_timeout"`
	HandshakeTimeout   Duration `toml:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout       Duration `toml:"write_timeout" yaml:"write_timeout"`
	CloseTimeout       Duration `toml:"close_timeout" yaml:"close_timeout"`
}

// AudioConfig holds microphone capture settings
type AudioConfig struct {
	Device           string `toml:"device" yaml:"device"`
	SampleRate       int    `toml:"sample_rate" yaml:"sample_rate"`
	Channels         int    `toml:"channels" yaml:"channels"`
	FrameMs          int    `toml:"frame_ms" yaml:"frame_ms"`
	EchoCancellation *bool  `toml:"echo_cancellation" yaml:"echo_cancellation"`
	NoiseSuppression *bool  `toml:"noise_suppression" yaml:"noise_suppression"`
	VADMode          int    `toml:"vad_mode" yaml:"vad_mode"`
}

// StreamingConfig holds the streaming attempt parameters
type StreamingConfig struct {
	Cadence         Duration `toml:"cadence" yaml:"cadence"`
	CloseGrace      Duration `toml:"close_grace" yaml:"close_grace"`
	FeedbackTimeout Duration `toml:"feedback_timeout" yaml:"feedback_timeout"`
	Formats         []string `toml:"formats" yaml:"formats"`
}

// LessonConfig holds session controller settings
type LessonConfig struct {
	SuccessThreshold float64 `toml:"success_threshold" yaml:"success_threshold"`
	CatalogFile      string  `toml:"catalog_file" yaml:"catalog_file"`
}

// HistoryConfig holds result history settings
type HistoryConfig struct {
	Enabled *bool  `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

// Duration wraps time.Duration for TOML and YAML parsing
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML parses a duration scalar
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// MarshalYAML formats the duration as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// DefaultFormats is the ordered list of audio format candidates
var DefaultFormats = []string{
	"audio/ogg;codecs=opus",
	"audio/wav",
	"audio/pcm;rate=16000;channels=1",
}

// Default returns a configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.expandEnvVars()
	return cfg
}

// Load loads configuration from a TOML or YAML file (chosen by extension)
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, hterror.Newf("config file not found: %s", path).WithCode(hterror.CodeConfigError)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, hterror.Wrap(err, "failed to read config").WithCode(hterror.CodeConfigError)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, hterror.Wrap(err, "failed to parse config").WithCode(hterror.CodeConfigError)
		}
	default:
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, hterror.Wrap(err, "failed to parse config").WithCode(hterror.CodeConfigError)
		}
	}

	// Apply defaults
	cfg.applyDefaults()

	// Expand environment variables in path fields
	cfg.expandEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration from the HATSUON_CONFIG environment variable,
// then the default locations. Without any file the defaults are returned.
func LoadFromEnv() (*Config, error) {
	path := os.Getenv("HATSUON_CONFIG")
	if path == "" {
		// Try default locations
		defaultPaths := []string{
			"./configs/config.toml",
			"./config.toml",
			filepath.Join(os.Getenv("HOME"), ".config/hatsuon/config.toml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return Default(), nil
	}

	return Load(path)
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// General
	if c.General.Name == "" {
		c.General.Name = "hatsuon"
	}
	if c.General.DataDir == "" {
		c.General.DataDir = filepath.Join(os.Getenv("HOME"), ".local/share/hatsuon")
	}
	if c.General.LogLevel == "" {
		c.General.LogLevel = "info"
	}
	if c.General.LogFormat == "" {
		c.General.LogFormat = "text"
	}

	// Backend
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8000"
	}
	if c.Backend.StreamURL == "" {
		c.Backend.StreamURL = wsURL(c.Backend.BaseURL) + "/api/v1/audio-stream/ws"
	}
	if c.Backend.CatalogPath == "" {
		c.Backend.CatalogPath = "/api/v1/phrases"
	}
	if c.Backend.ReferenceAudioPath == "" {
		c.Backend.ReferenceAudioPath = "/api/v1/audio-stream/audio"
	}
	if c.Backend.RequestTimeout.Duration == 0 {
		c.Backend.RequestTimeout.Duration = 10 * time.Second
	}
	if c.Backend.HandshakeTimeout.Duration == 0 {
		c.Backend.HandshakeTimeout.Duration = 10 * time.Second
	}
	if c.Backend.WriteTimeout.Duration == 0 {
		c.Backend.WriteTimeout.Duration = 5 * time.Second
	}
	if c.Backend.CloseTimeout.Duration == 0 {
		c.Backend.CloseTimeout.Duration = 2 * time.Second
	}

	// Audio
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.FrameMs == 0 {
		c.Audio.FrameMs = 20
	}
	if c.Audio.EchoCancellation == nil {
		c.Audio.EchoCancellation = boolPtr(true)
	}
	if c.Audio.NoiseSuppression == nil {
		c.Audio.NoiseSuppression = boolPtr(true)
	}
	if c.Audio.VADMode == 0 {
		c.Audio.VADMode = 2
	}

	// Streaming
	if c.Streaming.Cadence.Duration == 0 {
		c.Streaming.Cadence.Duration = 100 * time.Millisecond
	}
	if c.Streaming.CloseGrace.Duration == 0 {
		c.Streaming.CloseGrace.Duration = time.Second
	}
	if c.Streaming.FeedbackTimeout.Duration == 0 {
		c.Streaming.FeedbackTimeout.Duration = 30 * time.Second
	}
	if len(c.Streaming.Formats) == 0 {
		c.Streaming.Formats = append([]string(nil), DefaultFormats...)
	}

	// Lesson; an unset or zero threshold means the default
	if c.Lesson.SuccessThreshold == 0 {
		c.Lesson.SuccessThreshold = 70
	}

	// History
	if c.History.Enabled == nil {
		c.History.Enabled = boolPtr(true)
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.General.DataDir, "history.db")
	}
}

// expandEnvVars expands environment variables in configuration values
func (c *Config) expandEnvVars() {
	c.General.DataDir = os.ExpandEnv(c.General.DataDir)
	c.General.LogFile = os.ExpandEnv(c.General.LogFile)
	c.Backend.BaseURL = os.ExpandEnv(c.Backend.BaseURL)
	c.Backend.StreamURL = os.ExpandEnv(c.Backend.StreamURL)
	c.Lesson.CatalogFile = os.ExpandEnv(c.Lesson.CatalogFile)
	c.History.Path = os.ExpandEnv(c.History.Path)
}

// Validate checks value ranges the engine depends on
func (c *Config) Validate() error {
	switch c.Audio.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return invalid("audio.sample_rate", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 {
		return invalid("audio.channels", c.Audio.Channels)
	}
	switch c.Audio.FrameMs {
	case 10, 20, 30:
	default:
		return invalid("audio.frame_ms", c.Audio.FrameMs)
	}
	if c.Audio.VADMode < 0 || c.Audio.VADMode > 3 {
		return invalid("audio.vad_mode", c.Audio.VADMode)
	}
	if c.Streaming.Cadence.Duration <= 0 {
		return invalid("streaming.cadence", c.Streaming.Cadence)
	}
	if c.Streaming.FeedbackTimeout.Duration < 0 {
		return invalid("streaming.feedback_timeout", c.Streaming.FeedbackTimeout)
	}
	if c.Lesson.SuccessThreshold <= 0 || c.Lesson.SuccessThreshold > 100 {
		return invalid("lesson.success_threshold", c.Lesson.SuccessThreshold)
	}
	if strings.TrimSpace(c.Backend.StreamURL) == "" {
		return invalid("backend.stream_url", c.Backend.StreamURL)
	}
	return nil
}

// EchoCancellationEnabled reports the effective audio.echo_cancellation value
func (c *Config) EchoCancellationEnabled() bool {
	return c.Audio.EchoCancellation == nil || *c.Audio.EchoCancellation
}

// NoiseSuppressionEnabled reports the effective audio.noise_suppression value
func (c *Config) NoiseSuppressionEnabled() bool {
	return c.Audio.NoiseSuppression == nil || *c.Audio.NoiseSuppression
}

// HistoryEnabled reports the effective history.enabled value
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}

// FrameDuration returns the capture frame length
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.Audio.FrameMs) * time.Millisecond
}

// LogFilePath returns the log file, defaulting to <data_dir>/hatsuon.log
func (c *Config) LogFilePath() string {
	if c.General.LogFile != "" {
		return c.General.LogFile
	}
	return filepath.Join(c.General.DataDir, "hatsuon.log")
}

func invalid(key string, value interface{}) error {
	return hterror.Newf("invalid config value %s = %v", key, value).
		WithCode(hterror.CodeConfigError).
		WithDetail("key", key)
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// String renders the effective configuration as TOML
func (c *Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return b.String()
}
