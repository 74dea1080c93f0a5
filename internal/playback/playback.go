// Package playback turns text into a stream of Opus audio frames with a
// strict lifecycle contract. Each Speak call fires OnEnd or OnError exactly
// once, even when the synthesis backend stalls (a per-chunk watchdog forces
// completion), when the text is empty, or when the utterance is cancelled.
// Long text is split into bounded chunks spoken sequentially; a failed
// intermediate chunk is skipped rather than failing the whole utterance.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mockmate/mockmate/pkg/audio"
	"github.com/mockmate/mockmate/pkg/provider/tts"
)

// Callbacks receives utterance lifecycle events. Any field may be nil.
// OnEnd and OnError are mutually exclusive and fire exactly once per Speak.
type Callbacks struct {
	OnStart func()
	OnEnd   func()
	OnError func(err error)
}

// FrameFunc receives one encoded audio frame ready for delivery.
type FrameFunc func(frame []byte)

// Encoder converts provider PCM into delivery-ready frames. The default is
// [audio.FrameEncoder]; tests may substitute a passthrough.
type Encoder interface {
	Push(pcm []byte) ([][]byte, error)
	Flush() ([]byte, error)
}

// Config tunes a [Speaker]. Zero-value fields get defaults.
type Config struct {
	// ChunkRunes bounds the length of a single synthesis request.
	// Default: 220.
	ChunkRunes int

	// ChunkTimeout is the watchdog interval: if a chunk produces no audio
	// for this long, it is abandoned and playback moves on. Default: 6s.
	ChunkTimeout time.Duration

	// SourceFormat is the PCM format the provider emits.
	// Default: 24 kHz mono.
	SourceFormat audio.Format

	// VoicePreferences overrides the default voice preference order.
	VoicePreferences []string

	// SpeedFactor adjusts the speaking rate of the selected voice when > 0.
	SpeedFactor float64

	// NewEncoder constructs the per-utterance PCM encoder.
	// Default: [audio.NewFrameEncoder] with SourceFormat.
	NewEncoder func() (Encoder, error)

	// OnWatchdog, when set, is invoked each time the watchdog abandons a
	// stalled chunk.
	OnWatchdog func()
}

// Speaker synthesises utterances through a TTS provider and delivers encoded
// frames to a sink. One utterance is active at a time; starting a new one
// cancels the previous. Safe for concurrent use.
type Speaker struct {
	provider tts.Provider
	sink     FrameFunc
	cfg      Config

	mu      sync.Mutex
	current *utterance

	voiceMu  sync.Mutex
	voice    tts.VoiceProfile
	voiceSet bool
}

type utterance struct {
	cancel context.CancelFunc
	finish sync.Once
	cb     Callbacks
}

// end fires OnEnd unless a terminal callback already fired.
func (u *utterance) end() {
	u.finish.Do(func() {
		if u.cb.OnEnd != nil {
			u.cb.OnEnd()
		}
	})
}

// fail fires OnError unless a terminal callback already fired.
func (u *utterance) fail(err error) {
	u.finish.Do(func() {
		if u.cb.OnError != nil {
			u.cb.OnError(err)
		} else if u.cb.OnEnd != nil {
			u.cb.OnEnd()
		}
	})
}

// New creates a Speaker delivering frames to sink.
func New(provider tts.Provider, sink FrameFunc, cfg Config) *Speaker {
	if cfg.ChunkRunes <= 0 {
		cfg.ChunkRunes = 220
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = 6 * time.Second
	}
	if cfg.SourceFormat == (audio.Format{}) {
		cfg.SourceFormat = audio.Format{SampleRate: 24000, Channels: 1}
	}
	if cfg.NewEncoder == nil {
		source := cfg.SourceFormat
		cfg.NewEncoder = func() (Encoder, error) {
			return audio.NewFrameEncoder(source)
		}
	}
	return &Speaker{provider: provider, sink: sink, cfg: cfg}
}

// Speak synthesises text and delivers frames to the sink. Empty or
// whitespace-only text completes immediately with a synthetic OnEnd and no
// provider call. A previous in-flight utterance is cancelled first.
func (s *Speaker) Speak(ctx context.Context, text string, cb Callbacks) {
	if strings.TrimSpace(text) == "" {
		if cb.OnEnd != nil {
			cb.OnEnd()
		}
		return
	}

	s.Cancel()

	utterCtx, cancel := context.WithCancel(ctx)
	u := &utterance{cancel: cancel, cb: cb}

	s.mu.Lock()
	s.current = u
	s.mu.Unlock()

	go s.run(utterCtx, u, text)
}

// Cancel stops the in-flight utterance, if any. Its OnEnd fires (unless a
// terminal callback already did) before Cancel returns; no terminal callback
// follows. Callable from within a lifecycle callback.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	u := s.current
	s.current = nil
	s.mu.Unlock()
	if u == nil {
		return
	}
	u.cancel()
	u.end()
}

// Active reports whether an utterance is in flight.
func (s *Speaker) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

func (s *Speaker) run(ctx context.Context, u *utterance, text string) {
	defer s.clear(u)
	defer u.cancel()

	if ctx.Err() != nil {
		u.end()
		return
	}
	if u.cb.OnStart != nil {
		u.cb.OnStart()
	}

	voice, err := s.resolveVoice(ctx)
	if err != nil {
		u.fail(fmt.Errorf("playback: resolve voice: %w", err))
		return
	}

	chunks := chunkText(text, s.cfg.ChunkRunes)
	if len(chunks) == 0 {
		u.end()
		return
	}

	var failed int
	var lastErr error
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			u.end()
			return
		}
		if err := s.speakChunk(ctx, chunk, voice); err != nil {
			if ctx.Err() != nil {
				u.end()
				return
			}
			failed++
			lastErr = err
			slog.Warn("playback chunk failed, skipping",
				"chunk", i+1, "chunks", len(chunks), "error", err)
		}
	}

	if failed == len(chunks) {
		u.fail(fmt.Errorf("playback: all %d chunks failed: %w", failed, lastErr))
		return
	}
	u.end()
}

// errWatchdog marks a chunk abandoned for producing no audio in time.
var errWatchdog = errors.New("playback: synthesis stalled")

// speakChunk synthesises one chunk and pushes its frames to the sink. The
// watchdog abandons the chunk when no audio arrives for ChunkTimeout.
func (s *Speaker) speakChunk(ctx context.Context, chunk string, voice tts.VoiceProfile) error {
	enc, err := s.cfg.NewEncoder()
	if err != nil {
		return err
	}

	chunkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	textCh := make(chan string, 1)
	textCh <- chunk
	close(textCh)

	audioCh, err := s.provider.SynthesizeStream(chunkCtx, textCh, voice)
	if err != nil {
		return fmt.Errorf("playback: start synthesis: %w", err)
	}
	defer audio.Drain(audioCh)

	watchdog := time.NewTimer(s.cfg.ChunkTimeout)
	defer watchdog.Stop()

	for {
		select {
		case pcm, ok := <-audioCh:
			if !ok {
				return s.flush(enc)
			}
			if !watchdog.Stop() {
				<-watchdog.C
			}
			watchdog.Reset(s.cfg.ChunkTimeout)

			frames, err := enc.Push(pcm)
			if err != nil {
				return err
			}
			s.deliver(ctx, frames)

		case <-watchdog.C:
			cancel()
			if s.cfg.OnWatchdog != nil {
				s.cfg.OnWatchdog()
			}
			return errWatchdog

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Speaker) flush(enc Encoder) error {
	final, err := enc.Flush()
	if err != nil {
		return err
	}
	if final != nil && s.sink != nil {
		s.sink(final)
	}
	return nil
}

func (s *Speaker) deliver(ctx context.Context, frames [][]byte) {
	if s.sink == nil {
		return
	}
	for _, frame := range frames {
		if ctx.Err() != nil {
			return
		}
		s.sink(frame)
	}
}

// clear drops u as the current utterance if it still is.
func (s *Speaker) clear(u *utterance) {
	s.mu.Lock()
	if s.current == u {
		s.current = nil
	}
	s.mu.Unlock()
}

// resolveVoice returns the voice for synthesis, querying the provider's
// catalogue once and caching the pick.
func (s *Speaker) resolveVoice(ctx context.Context) (tts.VoiceProfile, error) {
	s.voiceMu.Lock()
	defer s.voiceMu.Unlock()
	if s.voiceSet {
		return s.voice, nil
	}

	voices, err := s.provider.ListVoices(ctx)
	if err != nil {
		return tts.VoiceProfile{}, err
	}

	var voice tts.VoiceProfile
	var ok bool
	if len(s.cfg.VoicePreferences) > 0 {
		voice, ok = tts.SelectVoiceFrom(voices, s.cfg.VoicePreferences)
	} else {
		voice, ok = tts.SelectVoice(voices)
	}
	if !ok {
		return tts.VoiceProfile{}, errors.New("playback: provider has no voices")
	}
	if s.cfg.SpeedFactor > 0 {
		voice.SpeedFactor = s.cfg.SpeedFactor
	}

	s.voice = voice
	s.voiceSet = true
	slog.Debug("playback voice selected", "voice", voice.Name, "provider", voice.Provider)
	return voice, nil
}
