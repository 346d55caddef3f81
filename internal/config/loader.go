package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validLLMBackends lists the supported local LLM backend names.
var validLLMBackends = []string{"ollama", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.LLM.Backend == "" {
		errs = append(errs, errors.New("llm.backend is required"))
	} else if !slices.Contains(validLLMBackends, cfg.LLM.Backend) {
		errs = append(errs, fmt.Errorf("llm.backend %q is invalid; valid values: ollama, llamacpp, llamafile", cfg.LLM.Backend))
	}
	if cfg.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}

	if cfg.TTS.ServerURL == "" {
		errs = append(errs, errors.New("tts.server_url is required"))
	}
	if cfg.TTS.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("tts.request_timeout %v must not be negative", cfg.TTS.RequestTimeout.Std()))
	}
	if cfg.TTS.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("tts.sample_rate %d must not be negative", cfg.TTS.SampleRate))
	}
	if c := cfg.TTS.Channels; c < 0 || c > 2 {
		errs = append(errs, fmt.Errorf("tts.channels %d is invalid; valid values: 1 (mono), 2 (stereo)", c))
	}

	if cfg.Pipeline.MaxChunkLen < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_chunk_len %d must not be negative", cfg.Pipeline.MaxChunkLen))
	}
	if w := cfg.Pipeline.CleanWorkers; w < 0 {
		errs = append(errs, fmt.Errorf("pipeline.clean_workers %d must not be negative", w))
	}
	if w := cfg.Pipeline.SynthWorkers; w < 0 {
		errs = append(errs, fmt.Errorf("pipeline.synth_workers %d must not be negative", w))
	}
	if p := cfg.Pipeline.OnSynthFailure; p != "" && !p.IsValid() {
		errs = append(errs, fmt.Errorf("pipeline.on_synth_failure %q is invalid; valid values: substitute, abort", p))
	}

	return errors.Join(errs...)
}
