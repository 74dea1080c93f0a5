package interview

import (
	"fmt"

	"github.com/mockmate/mockmate/internal/question"
	"github.com/mockmate/mockmate/internal/scorer"
)

// View is a render-ready snapshot of the session. All mutation happens inside
// the session; the client only ever observes Views.
type View struct {
	Stage      Stage               `json:"stage"`
	Skill      string              `json:"skill"`
	Difficulty question.Difficulty `json:"difficulty"`

	// QuestionNumber is 1-based; 0 before questions are loaded.
	QuestionNumber int    `json:"questionNumber"`
	TotalQuestions int    `json:"totalQuestions"`
	QuestionText   string `json:"questionText,omitempty"`

	// Announcement is the line the interviewer speaks for the current stage.
	Announcement string `json:"announcement,omitempty"`

	Draft   string `json:"draft"`
	Interim string `json:"interim,omitempty"`

	// AwaitingPlayback is true while the question read-out is in progress;
	// submit and skip are disabled until it clears.
	AwaitingPlayback bool `json:"awaitingPlayback"`

	// CaptureAvailable is false once speech recognition has been given up
	// on; typed input remains possible.
	CaptureAvailable bool `json:"captureAvailable"`
	CaptureActive    bool `json:"captureActive"`

	Feedback   *scorer.Feedback   `json:"feedback,omitempty"`
	Evaluation *scorer.Evaluation `json:"evaluation,omitempty"`

	PendingError ErrorCode `json:"pendingError,omitempty"`

	// UsedFallbackQuestions is true when the question batch came from the
	// local template set instead of the generator.
	UsedFallbackQuestions bool `json:"usedFallbackQuestions,omitempty"`

	Transcript []TranscriptEntry `json:"transcript"`
}

// view builds a snapshot. Callers must hold s.mu.
func (s *Session) view() View {
	v := View{
		Stage:                 s.stage,
		Skill:                 s.cfg.Skill,
		Difficulty:            s.cfg.Difficulty,
		TotalQuestions:        s.cfg.QuestionCount,
		Draft:                 s.draft,
		Interim:               s.interim,
		AwaitingPlayback:      s.awaitingPlayback,
		CaptureAvailable:      s.captureAvailable,
		CaptureActive:         s.owner == audioCapture,
		Feedback:              s.lastFeedback,
		Evaluation:            s.finalEval,
		PendingError:          s.pendingErr,
		UsedFallbackQuestions: s.usedFallback,
		Transcript:            append([]TranscriptEntry(nil), s.transcript...),
	}
	if len(s.questions) > 0 {
		v.QuestionNumber = s.currentIndex + 1
		v.QuestionText = s.questions[s.currentIndex].Text
	}
	v.Announcement = s.announcement()
	return v
}

// announcement returns the interviewer's line for the current stage. Callers
// must hold s.mu.
func (s *Session) announcement() string {
	switch s.stage {
	case StageIntro:
		return s.introLine()
	case StageAwaitingAnswer:
		if len(s.questions) > 0 {
			return s.questions[s.currentIndex].Text
		}
	case StageSubmitting:
		return "Processing your answer..."
	case StageFeedback:
		if s.lastFeedback != nil {
			return s.lastFeedback.FeedbackText + " " + s.continuationLine()
		}
	case StageEvaluating:
		return "I'm evaluating your overall interview performance..."
	case StageComplete:
		return "Evaluation complete. Here's your feedback."
	}
	return ""
}

func (s *Session) introLine() string {
	return fmt.Sprintf("Welcome to your %s Mock Interview! I'll be asking you %d %s level technical questions. Take your time to think about each answer before responding. Ready to begin?",
		s.cfg.Skill, s.cfg.QuestionCount, s.cfg.Difficulty)
}

// continuationLine follows per-question feedback. Callers must hold s.mu.
func (s *Session) continuationLine() string {
	if s.currentIndex+1 < len(s.questions) {
		return "Let's continue to the next question when you're ready."
	}
	return "We've completed all the questions. Let's review your overall performance."
}
