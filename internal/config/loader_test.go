package config

import (
	"strings"
	"testing"
	"time"

	"github.com/mockmate/mockmate/internal/question"
)

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: debug
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
  llm_fallbacks:
    - name: ollama
      base_url: http://localhost:11434
  tts:
    name: elevenlabs
    api_key: el-test
interview:
  default_skill: Go
  default_difficulty: advanced
  default_question_count: 7
  max_question_count: 10
  locale: en-US
  cache:
    ttl: 10m
    max_entries: 32
  capture:
    max_restarts: 3
  playback:
    chunk_runes: 200
    chunk_timeout: 5s
    speed_factor: 1.2
`

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("llm entry = %+v", cfg.Providers.LLM)
	}
	if len(cfg.Providers.LLMFallbacks) != 1 || cfg.Providers.LLMFallbacks[0].Name != "ollama" {
		t.Errorf("llm_fallbacks = %+v", cfg.Providers.LLMFallbacks)
	}
	if cfg.Interview.DefaultDifficulty != question.DifficultyAdvanced {
		t.Errorf("default_difficulty = %q", cfg.Interview.DefaultDifficulty)
	}
	if cfg.Interview.Cache.TTL != 10*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Interview.Cache.TTL)
	}
	if cfg.Interview.Playback.ChunkTimeout != 5*time.Second {
		t.Errorf("chunk_timeout = %v", cfg.Interview.Playback.ChunkTimeout)
	}
}

func TestLoadFromReaderRejectsUnknownFields(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("server:\n  listen_adddr: \":8080\"\n"))
	if err == nil {
		t.Fatal("want error for misspelled field")
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "verbose"
	if err := Validate(cfg); err == nil {
		t.Fatal("want error for invalid log level")
	}
}

func TestValidateDifficulty(t *testing.T) {
	cfg := &Config{}
	cfg.Interview.DefaultDifficulty = "impossible"
	if err := Validate(cfg); err == nil {
		t.Fatal("want error for invalid difficulty")
	}
}

func TestValidateQuestionCountBounds(t *testing.T) {
	cfg := &Config{}
	cfg.Interview.DefaultQuestionCount = 15
	cfg.Interview.MaxQuestionCount = 10
	if err := Validate(cfg); err == nil {
		t.Fatal("want error when default exceeds max")
	}
}

func TestValidateSpeedFactor(t *testing.T) {
	cfg := &Config{}
	cfg.Interview.Playback.SpeedFactor = 3.5
	if err := Validate(cfg); err == nil {
		t.Fatal("want error for out-of-range speed factor")
	}
}

func TestValidateTLSRequiresBothFiles(t *testing.T) {
	cfg := &Config{}
	cfg.Server.TLS = &TLSConfig{CertFile: "cert.pem"}
	if err := Validate(cfg); err == nil {
		t.Fatal("want error for TLS without key file")
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := &Config{}
	cfg.Server.LogLevel = "verbose"
	cfg.Interview.DefaultDifficulty = "impossible"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("want joined error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "log_level") || !strings.Contains(msg, "default_difficulty") {
		t.Fatalf("joined error missing entries: %v", msg)
	}
}

func TestInterviewWithDefaults(t *testing.T) {
	iv := InterviewConfig{}.WithDefaults()
	if iv.DefaultSkill != "JavaScript" {
		t.Errorf("default_skill = %q", iv.DefaultSkill)
	}
	if iv.DefaultDifficulty != question.DifficultyIntermediate {
		t.Errorf("default_difficulty = %q", iv.DefaultDifficulty)
	}
	if iv.DefaultQuestionCount != 5 || iv.MaxQuestionCount != 20 {
		t.Errorf("counts = %d/%d", iv.DefaultQuestionCount, iv.MaxQuestionCount)
	}
	if iv.Locale != "en-US" {
		t.Errorf("locale = %q", iv.Locale)
	}
	if iv.Cache.TTL != 15*time.Minute || iv.Cache.MaxEntries != 64 {
		t.Errorf("cache = %+v", iv.Cache)
	}
	if iv.Capture.MaxRestarts != 4 {
		t.Errorf("max_restarts = %d", iv.Capture.MaxRestarts)
	}
	if iv.Playback.ChunkRunes != 220 || iv.Playback.ChunkTimeout != 6*time.Second {
		t.Errorf("playback = %+v", iv.Playback)
	}
}

func TestInterviewWithDefaultsKeepsExplicitValues(t *testing.T) {
	iv := InterviewConfig{
		DefaultSkill:         "Rust",
		DefaultQuestionCount: 3,
	}.WithDefaults()
	if iv.DefaultSkill != "Rust" || iv.DefaultQuestionCount != 3 {
		t.Fatalf("explicit values overwritten: %+v", iv)
	}
}
