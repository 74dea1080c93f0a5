package interview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockmate/mockmate/internal/capture"
	"github.com/mockmate/mockmate/internal/playback"
	"github.com/mockmate/mockmate/internal/question"
	"github.com/mockmate/mockmate/internal/scorer"
	"github.com/mockmate/mockmate/internal/voicecmd"
)

const eventually = 2 * time.Second
const tick = 2 * time.Millisecond

// traceLog records cross-subsystem call ordering for exclusivity checks.
type traceLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *traceLog) add(entry string) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *traceLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeQuestions struct {
	mu        sync.Mutex
	questions []question.Question
	fallback  bool
	err       error
	block     chan struct{}
	calls     int
}

func (f *fakeQuestions) Fetch(ctx context.Context, req question.Request) ([]question.Question, bool, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	qs, fb, err := f.questions, f.fallback, f.err
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	if err != nil {
		return nil, false, err
	}
	return qs, fb, nil
}

type fakeScorer struct {
	mu           sync.Mutex
	queue        []scorer.Feedback
	evaluation   scorer.Evaluation
	answerCalls  []string
	sessionCalls [][]string
}

func (f *fakeScorer) ScoreAnswer(ctx context.Context, q question.Question, answer, skill string, difficulty question.Difficulty) scorer.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerCalls = append(f.answerCalls, answer)
	if len(f.queue) > 0 {
		fb := f.queue[0]
		f.queue = f.queue[1:]
		return fb
	}
	return scorer.Feedback{QuestionNumber: len(f.answerCalls), FeedbackText: "Solid answer.", Score: 82}
}

func (f *fakeScorer) ScoreSession(ctx context.Context, answers []string, skill string, difficulty question.Difficulty) scorer.Evaluation {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionCalls = append(f.sessionCalls, append([]string(nil), answers...))
	if f.evaluation == (scorer.Evaluation{}) {
		return scorer.Evaluation{Score: 71, Review: "Decent overall."}
	}
	return f.evaluation
}

func (f *fakeScorer) answerCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.answerCalls)
}

type fakePlayback struct {
	mu         sync.Mutex
	trace      *traceLog
	utterances []string
	manual     bool
	pending    playback.Callbacks
	hasPending bool
	cancels    int
}

func (f *fakePlayback) Speak(ctx context.Context, text string, cb playback.Callbacks) {
	f.mu.Lock()
	f.utterances = append(f.utterances, text)
	if f.trace != nil {
		f.trace.add("playback.speak")
	}
	if f.manual {
		f.pending = cb
		f.hasPending = true
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
}

func (f *fakePlayback) Cancel() {
	f.mu.Lock()
	f.cancels++
	if f.trace != nil {
		f.trace.add("playback.cancel")
	}
	cb := f.pending
	had := f.hasPending
	f.hasPending = false
	f.mu.Unlock()
	if had && cb.OnEnd != nil {
		cb.OnEnd()
	}
}

func (f *fakePlayback) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasPending
}

// finishPending completes a manual utterance as if the engine finished.
func (f *fakePlayback) finishPending() {
	f.mu.Lock()
	cb := f.pending
	had := f.hasPending
	f.hasPending = false
	f.mu.Unlock()
	if had && cb.OnEnd != nil {
		cb.OnEnd()
	}
}

type fakeCapture struct {
	mu     sync.Mutex
	trace  *traceLog
	active bool
	cb     capture.Callback
	starts int
	aborts int
}

func (f *fakeCapture) Start(ctx context.Context, opts capture.Options, cb capture.Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		return errors.New("already started")
	}
	f.active = true
	f.cb = cb
	f.starts++
	if f.trace != nil {
		f.trace.add("capture.start")
	}
	return nil
}

func (f *fakeCapture) Stop() error  { return f.Abort() }
func (f *fakeCapture) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active {
		f.active = false
		f.aborts++
		if f.trace != nil {
			f.trace.add("capture.abort")
		}
	}
	return nil
}

func (f *fakeCapture) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeCapture) emit(finalDelta, interim string, isFinal bool) {
	f.mu.Lock()
	cb := f.cb
	active := f.active
	f.mu.Unlock()
	if active && cb != nil {
		cb(finalDelta, interim, isFinal)
	}
}

func questionBatch(n int) []question.Question {
	qs := make([]question.Question, n)
	for i := range qs {
		qs[i] = question.Question{
			Text:        "Question " + string(rune('A'+i)),
			ModelAnswer: "Model answer",
			Difficulty:  "basic",
		}
	}
	return qs
}

type testEnv struct {
	session   *Session
	questions *fakeQuestions
	scorer    *fakeScorer
	playback  *fakePlayback
	capture   *fakeCapture
	trace     *traceLog
}

func newTestEnv(t *testing.T, count int, mutate func(*testEnv)) *testEnv {
	t.Helper()
	trace := &traceLog{}
	env := &testEnv{
		questions: &fakeQuestions{questions: questionBatch(count)},
		scorer:    &fakeScorer{},
		playback:  &fakePlayback{trace: trace},
		capture:   &fakeCapture{trace: trace},
		trace:     trace,
	}
	if mutate != nil {
		mutate(env)
	}

	sess, err := New(context.Background(), Config{
		Skill:         "JavaScript",
		Difficulty:    "basic",
		QuestionCount: count,
	}, Deps{
		Questions: env.questions,
		Scorer:    env.scorer,
		Playback:  env.playback,
		Capture:   env.capture,
		Commands:  voicecmd.New(),
	})
	require.NoError(t, err)
	env.session = sess
	return env
}

func waitStage(t *testing.T, s *Session, want Stage) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Stage() == want },
		eventually, tick, "expected stage %s, still %s", want, s.Stage())
}

func TestFullRunWithoutSkips(t *testing.T) {
	env := newTestEnv(t, 3, nil)
	s := env.session

	require.NoError(t, s.Start())

	for i := 0; i < 3; i++ {
		waitStage(t, s, StageAwaitingAnswer)
		s.SetDraft("My answer to this question.")
		require.NoError(t, s.Submit())
		waitStage(t, s, StageFeedback)
		require.NoError(t, s.Advance())
	}

	waitStage(t, s, StageComplete)

	v := s.View()
	assert.Equal(t, 3, v.TotalQuestions)
	require.NotNil(t, v.Evaluation)
	assert.NotZero(t, v.Evaluation.Score)
	assert.Len(t, env.scorer.answerCalls, 3)
	require.Len(t, env.scorer.sessionCalls, 1)
	assert.Len(t, env.scorer.sessionCalls[0], 3)
}

func TestStartFetchFailureStaysInIntro(t *testing.T) {
	env := newTestEnv(t, 3, func(e *testEnv) {
		e.questions.err = errors.New("generator offline")
	})
	s := env.session

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return s.View().PendingError == ErrCodeQuestionFetch
	}, eventually, tick)
	assert.Equal(t, StageIntro, s.Stage())

	// Retry succeeds once the generator is back.
	env.questions.mu.Lock()
	env.questions.err = nil
	env.questions.mu.Unlock()
	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	assert.Empty(t, s.View().PendingError)
}

func TestTextOnlySessionLeavesAudioOwnerClear(t *testing.T) {
	questions := &fakeQuestions{questions: questionBatch(2)}
	s, err := New(context.Background(), Config{
		Skill:         "JavaScript",
		Difficulty:    "basic",
		QuestionCount: 2,
	}, Deps{
		Questions: questions,
		Scorer:    &fakeScorer{},
	})
	require.NoError(t, err)

	owner := func() audioOwner {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.owner
	}

	s.AnnounceIntro()
	assert.Equal(t, audioNone, owner())

	// A full text-only run never claims the audio owner.
	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	assert.Equal(t, audioNone, owner())
	s.SetDraft("Typed answer.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)
	assert.Equal(t, audioNone, owner())
	require.NoError(t, s.Advance())
	waitStage(t, s, StageAwaitingAnswer)
	require.NoError(t, s.Skip())
	require.NoError(t, s.Advance())
	waitStage(t, s, StageComplete)
	assert.Equal(t, audioNone, owner())
}

func TestStartShortBatchStaysInIntro(t *testing.T) {
	env := newTestEnv(t, 3, func(e *testEnv) {
		e.questions.questions = questionBatch(1)
	})
	s := env.session

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return s.View().PendingError == ErrCodeQuestionFetch
	}, eventually, tick)
	assert.Equal(t, StageIntro, s.Stage())
	assert.Empty(t, s.View().Transcript)

	// A nil batch with no error must not panic either.
	env.questions.mu.Lock()
	env.questions.questions = nil
	env.questions.mu.Unlock()
	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return s.View().PendingError == ErrCodeQuestionFetch
	}, eventually, tick)
	assert.Equal(t, StageIntro, s.Stage())

	// Retry succeeds once the generator delivers a full batch.
	env.questions.mu.Lock()
	env.questions.questions = questionBatch(3)
	env.questions.mu.Unlock()
	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	assert.Empty(t, s.View().PendingError)
}

func TestAdvanceIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 3, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	s.SetDraft("First answer.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)

	require.NoError(t, s.Advance())
	require.NoError(t, s.Advance())

	waitStage(t, s, StageAwaitingAnswer)
	assert.Equal(t, 2, s.View().QuestionNumber, "double advance must move exactly one question")
}

func TestSkipBypassesScorer(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	require.NoError(t, s.Skip())

	// Skip transitions synchronously; no remote call is made.
	assert.Equal(t, StageFeedback, s.Stage())
	assert.Equal(t, 0, env.scorer.answerCallCount())

	v := s.View()
	require.NotNil(t, v.Feedback)
	assert.Contains(t, v.Feedback.FeedbackText, "chose to skip")
	require.NotEmpty(t, v.Transcript)
	assert.Equal(t, SentinelSkipped, v.Transcript[len(v.Transcript)-1].Text)
}

func TestScoringFallbackStillReachesFeedback(t *testing.T) {
	env := newTestEnv(t, 1, func(e *testEnv) {
		e.scorer.queue = []scorer.Feedback{scorer.FallbackFeedback()}
	})
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	s.SetDraft("An answer the scorer cannot reach the backend for.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)

	v := s.View()
	require.NotNil(t, v.Feedback)
	assert.True(t, v.Feedback.WasFallback)
	assert.Equal(t, 78, v.Feedback.Score)
	assert.Equal(t, ErrCodeScoring, v.PendingError)
}

func TestStaleFetchDiscardedAfterReset(t *testing.T) {
	block := make(chan struct{})
	env := newTestEnv(t, 3, func(e *testEnv) {
		e.questions.block = block
	})
	s := env.session

	require.NoError(t, s.Start())
	s.Reset()
	close(block)

	// The late resolution must not mutate the reset session.
	time.Sleep(50 * time.Millisecond)
	v := s.View()
	assert.Equal(t, StageIntro, v.Stage)
	assert.Zero(t, v.QuestionNumber)
	assert.Empty(t, v.Transcript)
}

func TestAudioExclusivityCancelBeforeCaptureStart(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	require.Eventually(t, func() bool { return env.capture.Active() }, eventually, tick)

	entries := env.trace.snapshot()
	cancelIdx, startIdx := -1, -1
	for i, e := range entries {
		if e == "playback.cancel" && cancelIdx < 0 {
			cancelIdx = i
		}
		if e == "capture.start" && startIdx < 0 {
			startIdx = i
		}
	}
	require.GreaterOrEqual(t, cancelIdx, 0, "playback.Cancel never observed: %v", entries)
	require.GreaterOrEqual(t, startIdx, 0, "capture.Start never observed: %v", entries)
	assert.Less(t, cancelIdx, startIdx, "playback must be cancelled before capture starts: %v", entries)
}

func TestConcreteScenarioMixedOutcomes(t *testing.T) {
	env := newTestEnv(t, 3, func(e *testEnv) {
		e.scorer.queue = []scorer.Feedback{
			{QuestionNumber: 1, FeedbackText: "Good coverage of the topic.", Score: 82},
			scorer.FallbackFeedback(),
		}
	})
	s := env.session

	require.NoError(t, s.Start())

	// Q1: normal answer, scorer succeeds.
	waitStage(t, s, StageAwaitingAnswer)
	s.SetDraft("Closures capture their defining scope.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)
	assert.Equal(t, 82, s.View().Feedback.Score)
	require.NoError(t, s.Advance())

	// Q2: skipped.
	waitStage(t, s, StageAwaitingAnswer)
	require.NoError(t, s.Skip())
	require.NoError(t, s.Advance())

	// Q3: scorer fails, fallback applies.
	waitStage(t, s, StageAwaitingAnswer)
	s.SetDraft("Promises model eventual values.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)
	assert.Equal(t, 78, s.View().Feedback.Score)
	require.NoError(t, s.Advance())

	waitStage(t, s, StageComplete)

	require.Len(t, env.scorer.sessionCalls, 1)
	assert.Equal(t, []string{
		"Closures capture their defining scope.",
		SentinelSkipped,
		"Promises model eventual values.",
	}, env.scorer.sessionCalls[0])

	v := s.View()
	require.NotNil(t, v.Evaluation)
	assert.NotZero(t, v.Evaluation.Score)
}

func TestEmptyDraftNormalizedToSentinel(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	s.SetDraft("   \n ")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)

	require.Len(t, env.scorer.answerCalls, 1)
	assert.Equal(t, SentinelNoAnswer, env.scorer.answerCalls[0])

	v := s.View()
	var answerEntry string
	for _, e := range v.Transcript {
		if e.Kind == EntryAnswer {
			answerEntry = e.Text
		}
	}
	assert.Equal(t, SentinelNoAnswer, answerEntry)
}

func TestTranscriptAdjacency(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	s.SetDraft("First.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)
	require.NoError(t, s.Advance())
	waitStage(t, s, StageAwaitingAnswer)
	require.NoError(t, s.Skip())

	v := s.View()
	require.Len(t, v.Transcript, 4)
	for i := 0; i < len(v.Transcript); i += 2 {
		assert.Equal(t, EntryQuestion, v.Transcript[i].Kind)
		assert.Equal(t, EntryAnswer, v.Transcript[i+1].Kind)
		assert.Equal(t, i/2, v.Transcript[i].Index)
	}
}

func TestSubmitBlockedDuringQuestionPlayback(t *testing.T) {
	env := newTestEnv(t, 1, func(e *testEnv) {
		e.playback.manual = true
	})
	s := env.session

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool { return s.View().AwaitingPlayback },
		eventually, tick)

	err := s.Submit()
	require.ErrorIs(t, err, ErrInvalidStage)

	env.playback.finishPending()
	require.Eventually(t, func() bool { return !s.View().AwaitingPlayback },
		eventually, tick)
	s.SetDraft("Now it goes through.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)
}

func TestTranscriptEventsAccumulateDraft(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	require.Eventually(t, func() bool { return env.capture.Active() }, eventually, tick)

	env.capture.emit("", "clo", false)
	assert.Equal(t, "clo", s.View().Interim)

	env.capture.emit("closures capture scope", "", true)
	env.capture.emit("and stay alive after return", "", true)

	v := s.View()
	assert.Equal(t, "closures capture scope and stay alive after return", v.Draft)
	assert.Empty(t, v.Interim)
}

func TestVoiceCommandSubmit(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	require.Eventually(t, func() bool { return env.capture.Active() }, eventually, tick)

	env.capture.emit("recursion with a memo table", "", true)
	env.capture.emit("submit answer", "", true)

	waitStage(t, s, StageFeedback)
	require.Len(t, env.scorer.answerCalls, 1)
	// The command phrase itself is not part of the answer.
	assert.Equal(t, "recursion with a memo table", env.scorer.answerCalls[0])
}

func TestVoiceCommandContinueInFeedback(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	require.NoError(t, s.Skip())
	assert.Equal(t, StageFeedback, s.Stage())

	// Feedback playback finished; capture is listening for "continue".
	require.Eventually(t, func() bool { return env.capture.Active() }, eventually, tick)
	env.capture.emit("continue", "", true)

	waitStage(t, s, StageAwaitingAnswer)
	assert.Equal(t, 2, s.View().QuestionNumber)
}

func TestCaptureUnavailableKeepsTypedInput(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)

	s.HandleCaptureUnavailable()
	v := s.View()
	assert.False(t, v.CaptureAvailable)
	assert.Equal(t, ErrCodeCapture, v.PendingError)

	// Typed input still drives the flow to completion.
	s.SetDraft("Typed answer.")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)
}

func TestResetClearsEverything(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	s.SetDraft("Partial answer")
	require.NoError(t, s.Submit())
	waitStage(t, s, StageFeedback)

	s.Reset()

	v := s.View()
	assert.Equal(t, StageIntro, v.Stage)
	assert.Empty(t, v.Transcript)
	assert.Empty(t, v.Draft)
	assert.Nil(t, v.Feedback)
	assert.Nil(t, v.Evaluation)
	assert.Zero(t, v.QuestionNumber)
	assert.False(t, env.capture.Active())

	// The session is reusable after reset.
	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
}

func TestFallbackQuestionsFlagSurfaces(t *testing.T) {
	env := newTestEnv(t, 2, func(e *testEnv) {
		e.questions.fallback = true
	})
	s := env.session

	require.NoError(t, s.Start())
	waitStage(t, s, StageAwaitingAnswer)
	assert.True(t, s.View().UsedFallbackQuestions)
}

func TestNewValidation(t *testing.T) {
	deps := Deps{Questions: &fakeQuestions{}, Scorer: &fakeScorer{}}

	_, err := New(context.Background(), Config{Skill: "", Difficulty: "basic", QuestionCount: 3}, deps)
	require.Error(t, err)

	_, err = New(context.Background(), Config{Skill: "Go", Difficulty: "impossible", QuestionCount: 3}, deps)
	require.Error(t, err)

	_, err = New(context.Background(), Config{Skill: "Go", Difficulty: "basic", QuestionCount: 0}, deps)
	require.Error(t, err)

	_, err = New(context.Background(), Config{Skill: "Go", Difficulty: "basic", QuestionCount: 3}, Deps{})
	require.Error(t, err)
}
