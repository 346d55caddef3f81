// Package config provides the configuration schema and loader for the voxdoc
// narration service.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings in Go
// duration syntax, e.g. "2m" or "1500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// FailurePolicy selects the reaction to a per-unit synthesis failure.
type FailurePolicy string

const (
	// PolicySubstitute inserts silence for the failed unit and continues.
	PolicySubstitute FailurePolicy = "substitute"

	// PolicyAbort fails the whole document on the first synthesis failure.
	PolicyAbort FailurePolicy = "abort"
)

// IsValid reports whether p is a recognised failure policy.
func (p FailurePolicy) IsValid() bool {
	return p == PolicySubstitute || p == PolicyAbort
}

// Config is the root configuration structure for voxdoc.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	TTS      TTSConfig      `yaml:"tts"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	RunStore RunStoreConfig `yaml:"run_store"`
}

// ServerConfig holds logging and the optional metrics/health listener.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the listener.
	MetricsAddr string `yaml:"metrics_addr"`
}

// LLMConfig selects the local language model used for text cleaning.
type LLMConfig struct {
	// Backend is one of "ollama", "llamacpp", "llamafile".
	Backend string `yaml:"backend"`

	// Model is the model identifier understood by the backend
	// (e.g., "llama3.2").
	Model string `yaml:"model"`

	// BaseURL overrides the backend's default daemon address.
	BaseURL string `yaml:"base_url"`
}

// TTSConfig selects the local speech synthesis server.
type TTSConfig struct {
	// ServerURL is the Chatterbox server address (e.g., "http://localhost:8004").
	ServerURL string `yaml:"server_url"`

	// RequestTimeout bounds one synthesis request. Zero uses the provider
	// default.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Exaggeration, CFGWeight and Temperature are the generation controls.
	// Zero fields select the documented defaults; out-of-range values are
	// clamped at synthesis time.
	Exaggeration float64 `yaml:"exaggeration"`
	CFGWeight    float64 `yaml:"cfg_weight"`
	Temperature  float64 `yaml:"temperature"`

	// SampleRate and Channels define the uniform output format. Zero selects
	// 24000 Hz mono.
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// PipelineConfig holds the chunking, concurrency and assembly settings.
type PipelineConfig struct {
	// MaxChunkLen is the per-unit character budget. Zero selects the
	// built-in default.
	MaxChunkLen int `yaml:"max_chunk_len"`

	// GapMs is the inter-unit silence in milliseconds. Zero selects the
	// 150 ms default; negative disables the gap.
	GapMs int `yaml:"gap_ms"`

	// CleanWorkers bounds concurrent LLM cleaning calls. Zero selects 1.
	CleanWorkers int `yaml:"clean_workers"`

	// SynthWorkers bounds concurrent TTS synthesis calls. Zero selects 1.
	SynthWorkers int `yaml:"synth_workers"`

	// OnSynthFailure is "substitute" (default) or "abort".
	OnSynthFailure FailurePolicy `yaml:"on_synth_failure"`
}

// Gap returns the configured inter-unit gap as a duration.
func (p PipelineConfig) Gap() time.Duration {
	return time.Duration(p.GapMs) * time.Millisecond
}

// RunStoreConfig configures the optional SQLite run-history store.
type RunStoreConfig struct {
	// Path is the SQLite database file. Empty disables run history.
	Path string `yaml:"path"`
}
