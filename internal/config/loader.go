package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "openai-direct", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"tts": {"elevenlabs", "coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
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
	if err := dec.Decode(cfg); err != nil {
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

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, entry := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", entry.Name)
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for _, entry := range cfg.Providers.TTSFallbacks {
		validateProviderName("tts", entry.Name)
	}

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; question generation and scoring will run on local fallbacks only")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; question read-out will be unavailable")
	}
	for i, entry := range cfg.Providers.LLMFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
	}
	for i, entry := range cfg.Providers.TTSFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
	}

	// Interview defaults
	iv := cfg.Interview
	if iv.DefaultDifficulty != "" && !iv.DefaultDifficulty.IsValid() {
		errs = append(errs, fmt.Errorf("interview.default_difficulty %q is invalid; valid values: basic, intermediate, advanced, mixed", iv.DefaultDifficulty))
	}
	if iv.DefaultQuestionCount < 0 {
		errs = append(errs, fmt.Errorf("interview.default_question_count %d must not be negative", iv.DefaultQuestionCount))
	}
	if iv.MaxQuestionCount < 0 {
		errs = append(errs, fmt.Errorf("interview.max_question_count %d must not be negative", iv.MaxQuestionCount))
	}
	if iv.DefaultQuestionCount > 0 && iv.MaxQuestionCount > 0 && iv.DefaultQuestionCount > iv.MaxQuestionCount {
		errs = append(errs, fmt.Errorf("interview.default_question_count %d exceeds max_question_count %d", iv.DefaultQuestionCount, iv.MaxQuestionCount))
	}
	if iv.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("interview.cache.ttl %v must not be negative", iv.Cache.TTL))
	}
	if iv.Capture.MaxRestarts < 0 {
		errs = append(errs, fmt.Errorf("interview.capture.max_restarts %d must not be negative", iv.Capture.MaxRestarts))
	}
	if iv.Playback.ChunkTimeout < 0 {
		errs = append(errs, fmt.Errorf("interview.playback.chunk_timeout %v must not be negative", iv.Playback.ChunkTimeout))
	}
	if sf := iv.Playback.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("interview.playback.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
