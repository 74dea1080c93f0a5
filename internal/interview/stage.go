package interview

// Stage is the discrete phase of an interview session.
type Stage string

const (
	// StageIntro waits for the user to confirm the interview setup. The
	// question batch is fetched on confirmation.
	StageIntro Stage = "intro"

	// StageAwaitingAnswer presents a question and collects the answer. Until
	// the question read-out completes, submit and skip are disabled.
	StageAwaitingAnswer Stage = "awaiting_answer"

	// StageSubmitting waits for the answer to be scored.
	StageSubmitting Stage = "submitting"

	// StageFeedback presents per-question feedback and waits for the user to
	// continue.
	StageFeedback Stage = "feedback"

	// StageEvaluating waits for the whole-session evaluation.
	StageEvaluating Stage = "evaluating"

	// StageComplete is terminal: the final evaluation is available.
	StageComplete Stage = "complete"
)

// ErrorCode identifies a non-fatal condition surfaced to the client. Empty
// means no pending error.
type ErrorCode string

const (
	// ErrCodeQuestionFetch: the question batch could not be fetched; the
	// session stays in intro and the user may retry.
	ErrCodeQuestionFetch ErrorCode = "question_fetch_failed"

	// ErrCodeScoring: scoring fell back to the fixed local payload. The flow
	// continues normally.
	ErrCodeScoring ErrorCode = "scoring_failed"

	// ErrCodePlayback: speech synthesis failed; treated as playback complete
	// so the flow never waits on audio.
	ErrCodePlayback ErrorCode = "playback_failed"

	// ErrCodeCapture: speech recognition is unavailable; typed input remains.
	ErrCodeCapture ErrorCode = "capture_unavailable"
)

// audioOwner records which subsystem holds the microphone/speaker. The two
// are mutually exclusive consumers.
type audioOwner int

const (
	audioNone audioOwner = iota
	audioPlayback
	audioCapture
)
