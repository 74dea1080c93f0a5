package health

import (
	"context"
	"errors"

	"github.com/mockmate/mockmate/pkg/provider/llm"
	"github.com/mockmate/mockmate/pkg/provider/tts"
)

// LLMChecker reports ready when an LLM provider is configured. Question
// generation and scoring degrade to local fallbacks without one, so a missing
// provider fails readiness but not liveness.
func LLMChecker(p llm.Provider) Checker {
	return Checker{
		Name: "llm",
		Check: func(context.Context) error {
			if p == nil {
				return errors.New("no LLM provider configured")
			}
			return nil
		},
	}
}

// TTSChecker reports ready when a TTS provider is configured and its voice
// catalogue is reachable.
func TTSChecker(p tts.Provider) Checker {
	return Checker{
		Name: "tts",
		Check: func(ctx context.Context) error {
			if p == nil {
				return errors.New("no TTS provider configured")
			}
			_, err := p.ListVoices(ctx)
			return err
		},
	}
}
