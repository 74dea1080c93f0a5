// Package interview implements the interview session state machine. A
// Session coordinates four asynchronous, partially unreliable subsystems —
// question delivery, speech capture, speech playback, and remote scoring —
// into one consistent user-facing flow.
//
// All mutation is serialized by the session mutex. Remote calls run in
// goroutines tagged with the epoch (and question index) active at call time;
// a resolution arriving after a reset or advance is discarded instead of
// applied. Capture and playback are mutually exclusive audio consumers:
// before either starts, the other is cancelled.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mockmate/mockmate/internal/capture"
	"github.com/mockmate/mockmate/internal/observe"
	"github.com/mockmate/mockmate/internal/playback"
	"github.com/mockmate/mockmate/internal/question"
	"github.com/mockmate/mockmate/internal/scorer"
	"github.com/mockmate/mockmate/internal/voicecmd"
)

// Sentinel answers recorded in place of real content.
const (
	// SentinelNoAnswer is stored when the user submits an empty or
	// whitespace-only draft.
	SentinelNoAnswer = "I don't have an answer for this question."

	// SentinelSkipped is stored when the user skips a question.
	SentinelSkipped = "Question skipped by user."
)

// ErrInvalidStage is returned by operations invoked in a stage that does not
// permit them.
var ErrInvalidStage = errors.New("interview: operation not valid in current stage")

// QuestionFetcher supplies the question batch for a session.
type QuestionFetcher interface {
	Fetch(ctx context.Context, req question.Request) (questions []question.Question, usedFallback bool, err error)
}

// AnswerScorer scores single answers and whole sessions. Implementations
// never return an error; failures resolve to fixed fallback payloads flagged
// WasFallback.
type AnswerScorer interface {
	ScoreAnswer(ctx context.Context, q question.Question, answer, skill string, difficulty question.Difficulty) scorer.Feedback
	ScoreSession(ctx context.Context, answers []string, skill string, difficulty question.Difficulty) scorer.Evaluation
}

// Playback speaks text with an exactly-once terminal callback per utterance.
type Playback interface {
	Speak(ctx context.Context, text string, cb playback.Callbacks)
	Cancel()
	Active() bool
}

// Capture is a stoppable speech recognition source.
type Capture interface {
	Start(ctx context.Context, opts capture.Options, cb capture.Callback) error
	Stop() error
	Abort() error
	Active() bool
}

// Config is the immutable per-session setup supplied by the user.
type Config struct {
	Skill         string
	Difficulty    question.Difficulty
	QuestionCount int
	Locale        string

	// OnUpdate, when set, receives a snapshot after every observable state
	// change. Called outside the session lock.
	OnUpdate func(View)
}

// Deps are the session's collaborators. Questions and Scorer are required;
// nil Playback/Capture degrade to text-only operation; nil Commands disables
// voice commands.
type Deps struct {
	Questions QuestionFetcher
	Scorer    AnswerScorer
	Playback  Playback
	Capture   Capture
	Commands  *voicecmd.Matcher
	Metrics   *observe.Metrics
}

// Session is the interview state machine. Safe for concurrent use.
type Session struct {
	cfg  Config
	deps Deps

	baseCtx context.Context

	mu          sync.Mutex
	stage       Stage
	epoch       int
	epochCtx    context.Context
	epochCancel context.CancelFunc

	questions    []question.Question
	usedFallback bool
	currentIndex int
	transcript   []TranscriptEntry
	answers      []string
	draft        string
	interim      string
	lastFeedback *scorer.Feedback
	finalEval    *scorer.Evaluation
	pendingErr   ErrorCode

	fetching         bool
	awaitingPlayback bool
	owner            audioOwner
	captureAvailable bool
}

// New creates a session in the intro stage. ctx bounds all remote work for
// the session's lifetime.
func New(ctx context.Context, cfg Config, deps Deps) (*Session, error) {
	if strings.TrimSpace(cfg.Skill) == "" {
		return nil, errors.New("interview: skill must not be empty")
	}
	if !cfg.Difficulty.IsValid() {
		return nil, fmt.Errorf("interview: invalid difficulty %q", cfg.Difficulty)
	}
	if cfg.QuestionCount <= 0 {
		return nil, fmt.Errorf("interview: question count must be positive, got %d", cfg.QuestionCount)
	}
	if deps.Questions == nil || deps.Scorer == nil {
		return nil, errors.New("interview: question fetcher and scorer are required")
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}

	s := &Session{
		cfg:              cfg,
		deps:             deps,
		baseCtx:          ctx,
		stage:            StageIntro,
		captureAvailable: true,
	}
	s.epochCtx, s.epochCancel = context.WithCancel(ctx)
	return s, nil
}

// View returns the current render-ready snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// Stage returns the current stage.
func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// AnnounceIntro speaks the interviewer's welcome line. No stage change.
func (s *Session) AnnounceIntro() {
	s.mu.Lock()
	if s.stage != StageIntro {
		s.mu.Unlock()
		return
	}
	line := s.introLine()
	epoch := s.epoch
	ctx := s.epochCtx
	if s.deps.Playback != nil {
		s.owner = audioPlayback
	}
	s.mu.Unlock()

	s.speak(ctx, epoch, line, nil)
}

// Start confirms the setup and fetches the question batch. On fetch failure
// the session stays in intro with a pending error so the user can retry.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.stage != StageIntro {
		s.mu.Unlock()
		return fmt.Errorf("%w: start in %s", ErrInvalidStage, s.stage)
	}
	if s.fetching {
		s.mu.Unlock()
		return nil
	}
	s.fetching = true
	s.pendingErr = ""
	epoch := s.epoch
	ctx := s.epochCtx
	req := question.Request{
		Skill:      s.cfg.Skill,
		Difficulty: s.cfg.Difficulty,
		Count:      s.cfg.QuestionCount,
	}
	s.mu.Unlock()

	s.notify()

	go func() {
		start := time.Now()
		questions, usedFallback, err := s.deps.Questions.Fetch(ctx, req)
		s.deps.Metrics.QuestionFetchDuration.Record(ctx, time.Since(start).Seconds())
		s.completeFetch(epoch, questions, usedFallback, err)
	}()
	return nil
}

func (s *Session) completeFetch(epoch int, questions []question.Question, usedFallback bool, err error) {
	s.mu.Lock()
	if epoch != s.epoch || s.stage != StageIntro {
		s.mu.Unlock()
		return
	}
	s.fetching = false

	if err != nil {
		s.pendingErr = ErrCodeQuestionFetch
		s.mu.Unlock()
		slog.Warn("question fetch failed", "skill", s.cfg.Skill, "error", err)
		s.notify()
		return
	}
	// A short batch would break the question-count contract downstream;
	// treat it like a failed fetch and let the user retry.
	if len(questions) < s.cfg.QuestionCount {
		s.pendingErr = ErrCodeQuestionFetch
		s.mu.Unlock()
		slog.Warn("question fetch under-delivered",
			"skill", s.cfg.Skill, "got", len(questions), "want", s.cfg.QuestionCount)
		s.notify()
		return
	}

	s.questions = questions
	s.usedFallback = usedFallback
	s.currentIndex = 0
	s.transcript = append(s.transcript, TranscriptEntry{
		Kind:  EntryQuestion,
		Index: 0,
		Text:  questions[0].Text,
	})
	s.stage = StageAwaitingAnswer
	s.awaitingPlayback = true
	if s.deps.Playback != nil {
		s.owner = audioPlayback
	}
	text := questions[0].Text
	ctx := s.epochCtx
	s.mu.Unlock()

	s.deps.Metrics.RecordStageTransition(ctx, string(StageIntro), string(StageAwaitingAnswer))
	s.speak(ctx, epoch, text, s.questionPlaybackDone)
	s.notify()
}

// SetDraft replaces the answer draft with typed text.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	if s.stage != StageAwaitingAnswer {
		s.mu.Unlock()
		return
	}
	s.draft = text
	s.interim = ""
	s.mu.Unlock()
	s.notify()
}

// Submit finalises the current draft as the answer and requests scoring. An
// empty draft is normalised to the no-answer sentinel. Disabled while the
// question read-out is still playing.
func (s *Session) Submit() error {
	s.mu.Lock()
	if s.stage != StageAwaitingAnswer || s.awaitingPlayback {
		s.mu.Unlock()
		return fmt.Errorf("%w: submit in %s", ErrInvalidStage, s.stage)
	}

	answer := strings.TrimSpace(s.draft)
	if answer == "" {
		answer = SentinelNoAnswer
	}
	s.answers = append(s.answers, answer)
	s.transcript = append(s.transcript, TranscriptEntry{Kind: EntryAnswer, Text: answer})
	s.draft = ""
	s.interim = ""
	s.stage = StageSubmitting
	s.owner = audioNone

	epoch := s.epoch
	idx := s.currentIndex
	q := s.questions[idx]
	ctx := s.epochCtx
	s.mu.Unlock()

	s.stopCapture()
	s.deps.Metrics.RecordStageTransition(ctx, string(StageAwaitingAnswer), string(StageSubmitting))
	s.notify()

	go func() {
		start := time.Now()
		fb := s.deps.Scorer.ScoreAnswer(ctx, q, answer, s.cfg.Skill, s.cfg.Difficulty)
		s.deps.Metrics.RecordScoringDuration(ctx, "answer", time.Since(start).Seconds())
		s.completeScoring(epoch, idx, fb)
	}()
	return nil
}

func (s *Session) completeScoring(epoch, idx int, fb scorer.Feedback) {
	s.mu.Lock()
	if epoch != s.epoch || s.stage != StageSubmitting || s.currentIndex != idx {
		s.mu.Unlock()
		return
	}
	s.lastFeedback = &fb
	if fb.WasFallback {
		s.pendingErr = ErrCodeScoring
	} else {
		s.pendingErr = ""
	}
	s.stage = StageFeedback
	if s.deps.Playback != nil {
		s.owner = audioPlayback
	}
	text := fb.FeedbackText + " " + s.continuationLine()
	ctx := s.epochCtx
	s.mu.Unlock()

	s.deps.Metrics.RecordStageTransition(ctx, string(StageSubmitting), string(StageFeedback))
	if fb.WasFallback {
		s.deps.Metrics.RecordScoringFallback(ctx, "answer")
	}
	s.speak(ctx, epoch, text, s.feedbackPlaybackDone)
	s.notify()
}

// Skip abandons the current question without scoring. A sentinel answer is
// recorded and a fixed local feedback payload shown.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.stage != StageAwaitingAnswer || s.awaitingPlayback {
		s.mu.Unlock()
		return fmt.Errorf("%w: skip in %s", ErrInvalidStage, s.stage)
	}

	s.answers = append(s.answers, SentinelSkipped)
	s.transcript = append(s.transcript, TranscriptEntry{Kind: EntryAnswer, Text: SentinelSkipped})
	s.draft = ""
	s.interim = ""
	fb := scorer.SkipFeedback(s.currentIndex + 1)
	s.lastFeedback = &fb
	s.pendingErr = ""
	s.stage = StageFeedback
	if s.deps.Playback != nil {
		s.owner = audioPlayback
	}
	text := fb.FeedbackText + " " + s.continuationLine()
	epoch := s.epoch
	ctx := s.epochCtx
	s.mu.Unlock()

	s.stopCapture()
	s.deps.Metrics.RecordStageTransition(ctx, string(StageAwaitingAnswer), string(StageFeedback))
	s.speak(ctx, epoch, text, s.feedbackPlaybackDone)
	s.notify()
	return nil
}

// Advance moves past feedback: to the next question, or to the final
// evaluation when none remain. Idempotent — a duplicate trigger outside the
// feedback stage is a no-op.
func (s *Session) Advance() error {
	s.mu.Lock()
	if s.stage != StageFeedback {
		s.mu.Unlock()
		return nil
	}
	s.lastFeedback = nil
	s.pendingErr = ""
	epoch := s.epoch
	ctx := s.epochCtx

	if s.currentIndex+1 < len(s.questions) {
		s.currentIndex++
		s.transcript = append(s.transcript, TranscriptEntry{
			Kind:  EntryQuestion,
			Index: s.currentIndex,
			Text:  s.questions[s.currentIndex].Text,
		})
		s.stage = StageAwaitingAnswer
		s.awaitingPlayback = true
		if s.deps.Playback != nil {
			s.owner = audioPlayback
		}
		text := s.questions[s.currentIndex].Text
		s.mu.Unlock()

		s.stopCapture()
		s.deps.Metrics.RecordStageTransition(ctx, string(StageFeedback), string(StageAwaitingAnswer))
		s.speak(ctx, epoch, text, s.questionPlaybackDone)
		s.notify()
		return nil
	}

	s.stage = StageEvaluating
	s.owner = audioNone
	answers := append([]string(nil), s.answers...)
	s.mu.Unlock()

	s.stopCapture()
	s.deps.Metrics.RecordStageTransition(ctx, string(StageFeedback), string(StageEvaluating))
	s.notify()

	go func() {
		start := time.Now()
		eval := s.deps.Scorer.ScoreSession(ctx, answers, s.cfg.Skill, s.cfg.Difficulty)
		s.deps.Metrics.RecordScoringDuration(ctx, "session", time.Since(start).Seconds())
		s.completeEvaluation(epoch, eval)
	}()
	return nil
}

func (s *Session) completeEvaluation(epoch int, eval scorer.Evaluation) {
	s.mu.Lock()
	if epoch != s.epoch || s.stage != StageEvaluating {
		s.mu.Unlock()
		return
	}
	s.finalEval = &eval
	if eval.WasFallback {
		s.pendingErr = ErrCodeScoring
	} else {
		s.pendingErr = ""
	}
	s.stage = StageComplete
	if s.deps.Playback != nil {
		s.owner = audioPlayback
	}
	ctx := s.epochCtx
	s.mu.Unlock()

	s.deps.Metrics.RecordStageTransition(ctx, string(StageEvaluating), string(StageComplete))
	if eval.WasFallback {
		s.deps.Metrics.RecordScoringFallback(ctx, "session")
	}
	s.speak(ctx, epoch, "Evaluation complete. Here's your feedback.", nil)
	s.notify()
}

// Reset returns the session to intro with every collection cleared. All
// in-flight audio is cancelled and pending remote resolutions become stale.
func (s *Session) Reset() {
	s.mu.Lock()
	s.epoch++
	s.epochCancel()
	s.epochCtx, s.epochCancel = context.WithCancel(s.baseCtx)

	s.stage = StageIntro
	s.questions = nil
	s.usedFallback = false
	s.currentIndex = 0
	s.transcript = nil
	s.answers = nil
	s.draft = ""
	s.interim = ""
	s.lastFeedback = nil
	s.finalEval = nil
	s.pendingErr = ""
	s.fetching = false
	s.awaitingPlayback = false
	s.owner = audioNone
	s.captureAvailable = true
	s.mu.Unlock()

	if s.deps.Playback != nil {
		s.deps.Playback.Cancel()
	}
	if s.deps.Capture != nil {
		s.deps.Capture.Abort()
	}
	s.notify()
}

// Close releases the session: all audio is cancelled and remote work is
// abandoned.
func (s *Session) Close() {
	s.mu.Lock()
	s.epoch++
	s.epochCancel()
	s.mu.Unlock()

	if s.deps.Playback != nil {
		s.deps.Playback.Cancel()
	}
	if s.deps.Capture != nil {
		s.deps.Capture.Abort()
	}
}

// HandleTranscript consumes one speech recognition event. Final segments are
// first checked for voice commands; anything else accumulates into the
// draft.
func (s *Session) HandleTranscript(finalDelta, interim string, isFinal bool) {
	var op func() error
	var command voicecmd.Command

	s.mu.Lock()
	switch {
	case s.stage == StageAwaitingAnswer && !s.awaitingPlayback:
		if isFinal && finalDelta != "" && s.deps.Commands != nil {
			if cmd, _ := s.deps.Commands.Match(finalDelta); cmd != voicecmd.None {
				command = cmd
				switch cmd {
				case voicecmd.Submit:
					op = s.Submit
				case voicecmd.Skip:
					op = s.Skip
				case voicecmd.Continue:
					// Not meaningful while answering; treat as content.
					command = voicecmd.None
					op = nil
				}
			}
		}
		if op == nil {
			if finalDelta != "" {
				if s.draft != "" && !strings.HasSuffix(s.draft, " ") {
					s.draft += " "
				}
				s.draft += finalDelta
			}
			s.interim = interim
		}

	case s.stage == StageFeedback:
		if isFinal && finalDelta != "" && s.deps.Commands != nil {
			if cmd, _ := s.deps.Commands.Match(finalDelta); cmd == voicecmd.Continue {
				command = cmd
				op = s.Advance
			}
		}
	}
	ctx := s.epochCtx
	s.mu.Unlock()

	if command != voicecmd.None {
		s.deps.Metrics.RecordVoiceCommand(ctx, command.String())
	}
	if op != nil {
		if err := op(); err != nil {
			slog.Debug("voice command ignored", "command", command.String(), "error", err)
		}
		return
	}
	s.notify()
}

// HandleCaptureUnavailable marks speech input as permanently unavailable for
// this session. Typed input remains.
func (s *Session) HandleCaptureUnavailable() {
	s.mu.Lock()
	s.captureAvailable = false
	s.pendingErr = ErrCodeCapture
	if s.owner == audioCapture {
		s.owner = audioNone
	}
	s.mu.Unlock()
	s.notify()
}

// questionPlaybackDone runs when the question read-out completes (or fails,
// which resolves identically so the flow never hangs on audio). Input
// controls unlock and capture starts.
func (s *Session) questionPlaybackDone(epoch int, failed bool) {
	s.mu.Lock()
	if epoch != s.epoch || s.stage != StageAwaitingAnswer {
		s.mu.Unlock()
		return
	}
	s.awaitingPlayback = false
	if failed {
		s.pendingErr = ErrCodePlayback
	}
	s.mu.Unlock()

	s.startCapture(epoch)
	s.notify()
}

// feedbackPlaybackDone runs when the feedback read-out completes. Capture
// restarts so "continue" can be spoken.
func (s *Session) feedbackPlaybackDone(epoch int, failed bool) {
	s.mu.Lock()
	if epoch != s.epoch || s.stage != StageFeedback {
		s.mu.Unlock()
		return
	}
	if failed {
		s.pendingErr = ErrCodePlayback
	}
	s.mu.Unlock()

	s.startCapture(epoch)
	s.notify()
}

// speak starts playback of text. done, when non-nil, is invoked exactly once
// with failed=true when every chunk failed. Must be called without s.mu.
func (s *Session) speak(ctx context.Context, epoch int, text string, done func(epoch int, failed bool)) {
	if s.deps.Playback == nil {
		if done != nil {
			done(epoch, false)
		}
		return
	}
	s.deps.Playback.Speak(ctx, text, playback.Callbacks{
		OnEnd: func() {
			if done != nil {
				done(epoch, false)
			}
		},
		OnError: func(err error) {
			slog.Warn("playback failed", "error", err)
			if done != nil {
				done(epoch, true)
			}
		},
	})
}

// startCapture begins speech recognition after cancelling any active
// playback; the two never run concurrently. Must be called without s.mu.
func (s *Session) startCapture(epoch int) {
	if s.deps.Capture == nil {
		return
	}

	s.mu.Lock()
	if epoch != s.epoch || !s.captureAvailable || s.owner == audioCapture {
		s.mu.Unlock()
		return
	}
	s.owner = audioCapture
	ctx := s.epochCtx
	locale := s.cfg.Locale
	s.mu.Unlock()

	if s.deps.Playback != nil {
		s.deps.Playback.Cancel()
	}
	opts := capture.Options{Locale: locale, Continuous: true, InterimResults: true}
	if err := s.deps.Capture.Start(ctx, opts, s.HandleTranscript); err != nil {
		if s.deps.Capture.Active() {
			// Already running from a previous question; keep it.
			return
		}
		slog.Warn("capture start failed", "error", err)
		s.HandleCaptureUnavailable()
	}
}

// stopCapture aborts recognition and releases the audio owner. Must be
// called without s.mu.
func (s *Session) stopCapture() {
	if s.deps.Capture == nil {
		return
	}
	s.deps.Capture.Abort()
	s.mu.Lock()
	if s.owner == audioCapture {
		s.owner = audioNone
	}
	s.mu.Unlock()
}

// notify pushes a fresh snapshot to the observer. Must be called without
// s.mu.
func (s *Session) notify() {
	if s.cfg.OnUpdate == nil {
		return
	}
	s.mu.Lock()
	v := s.view()
	s.mu.Unlock()
	s.cfg.OnUpdate(v)
}
