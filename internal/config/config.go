// Package config provides the configuration schema, loader, file watcher,
// and provider registry for the MockMate interview server.
package config

import (
	"time"

	"github.com/mockmate/mockmate/internal/question"
)

// LogLevel controls log verbosity for the server.
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

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Interview InterviewConfig `yaml:"interview"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which backend to use for question generation and
// scoring (LLM) and for speech synthesis (TTS). The fallback lists configure
// additional backends tried in order when the primary fails.
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	TTS          ProviderEntry   `yaml:"tts"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// InterviewConfig holds session defaults and the speech tuning knobs.
type InterviewConfig struct {
	// DefaultSkill is used when a session request does not name a skill.
	DefaultSkill string `yaml:"default_skill"`

	// DefaultDifficulty is used when a session request does not name a tier.
	DefaultDifficulty question.Difficulty `yaml:"default_difficulty"`

	// DefaultQuestionCount is used when a session request does not set a
	// count.
	DefaultQuestionCount int `yaml:"default_question_count"`

	// MaxQuestionCount caps the per-session question count.
	MaxQuestionCount int `yaml:"max_question_count"`

	// Locale is the capture recognition language (e.g., "en-US").
	Locale string `yaml:"locale"`

	Cache    CacheConfig    `yaml:"cache"`
	Capture  CaptureConfig  `yaml:"capture"`
	Playback PlaybackConfig `yaml:"playback"`
}

// CacheConfig tunes the question batch cache.
type CacheConfig struct {
	// TTL is how long a cached batch stays valid. Default: 15m.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries caps the number of cached batches. Default: 64.
	MaxEntries int `yaml:"max_entries"`
}

// CaptureConfig tunes speech capture.
type CaptureConfig struct {
	// MaxRestarts bounds automatic recognizer restarts after unexpected
	// end-of-stream. Default: 4.
	MaxRestarts int `yaml:"max_restarts"`
}

// PlaybackConfig tunes speech playback.
type PlaybackConfig struct {
	// ChunkRunes is the approximate chunk length long text is split into
	// before synthesis. Default: 220.
	ChunkRunes int `yaml:"chunk_runes"`

	// ChunkTimeout is the per-chunk watchdog forcing synthetic completion
	// when the engine stalls. Default: 6s.
	ChunkTimeout time.Duration `yaml:"chunk_timeout"`

	// VoicePreferences overrides the built-in ordered voice name preference
	// list used for voice auto-selection.
	VoicePreferences []string `yaml:"voice_preferences"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means
	// default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// WithDefaults returns a copy of c with zero-value interview fields replaced
// by the built-in defaults.
func (c InterviewConfig) WithDefaults() InterviewConfig {
	if c.DefaultSkill == "" {
		c.DefaultSkill = "JavaScript"
	}
	if c.DefaultDifficulty == "" {
		c.DefaultDifficulty = question.DifficultyIntermediate
	}
	if c.DefaultQuestionCount <= 0 {
		c.DefaultQuestionCount = 5
	}
	if c.MaxQuestionCount <= 0 {
		c.MaxQuestionCount = 20
	}
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 64
	}
	if c.Capture.MaxRestarts <= 0 {
		c.Capture.MaxRestarts = 4
	}
	if c.Playback.ChunkRunes <= 0 {
		c.Playback.ChunkRunes = 220
	}
	if c.Playback.ChunkTimeout <= 0 {
		c.Playback.ChunkTimeout = 6 * time.Second
	}
	return c
}
