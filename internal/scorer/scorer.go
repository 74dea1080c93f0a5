// Package scorer grades interview answers via an LLM provider. Both scoring
// calls degrade to fixed fallback payloads instead of returning errors, so
// the session flow never needs a failure branch; the WasFallback flag on each
// result exists for observability only.
package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mockmate/mockmate/internal/question"
	"github.com/mockmate/mockmate/pkg/provider/llm"
)

// Feedback is the per-answer scoring result.
type Feedback struct {
	QuestionNumber int      `json:"questionNumber"`
	FeedbackText   string   `json:"feedback"`
	Score          int      `json:"score"`
	Strength       string   `json:"strength"`
	Improvement    string   `json:"improvement"`
	Additional     []string `json:"additionalImprovements,omitempty"`

	// WasFallback reports whether this payload is the fixed fallback rather
	// than a graded response.
	WasFallback bool `json:"-"`
}

// Evaluation is the whole-session scoring result.
type Evaluation struct {
	Score       int    `json:"score"`
	Review      string `json:"review"`
	Strengths   string `json:"strengths"`
	Weaknesses  string `json:"weaknesses"`
	Suggestions string `json:"suggestions"`

	WasFallback bool `json:"-"`
}

// Scorer grades answers with an LLM provider.
type Scorer struct {
	provider llm.Provider
}

// New creates a Scorer backed by provider.
func New(provider llm.Provider) *Scorer {
	return &Scorer{provider: provider}
}

// ScoreAnswer grades a single question/answer pair. It never returns an
// error: remote or parse failures yield the fixed fallback payload with
// WasFallback set. ctx cancellation also resolves to the fallback so callers
// racing a reset still receive a well-formed result to discard.
func (s *Scorer) ScoreAnswer(ctx context.Context, q question.Question, answer, skill string, difficulty question.Difficulty) Feedback {
	prompt := answerPrompt(q.Text, answer, skill, difficulty)

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		slog.Warn("answer scoring failed, using fallback", "skill", skill, "error", err)
		return FallbackFeedback()
	}

	var fb Feedback
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &fb); err != nil {
		slog.Warn("answer feedback parse failed, using fallback", "error", err)
		return FallbackFeedback()
	}
	if fb.Score < 0 {
		fb.Score = 0
	}
	if fb.Score > 100 {
		fb.Score = 100
	}
	return fb
}

// ScoreSession grades the whole answer sequence. Same never-error contract as
// ScoreAnswer.
func (s *Scorer) ScoreSession(ctx context.Context, answers []string, skill string, difficulty question.Difficulty) Evaluation {
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: sessionPrompt(answers, skill, difficulty)}},
	})
	if err != nil {
		slog.Warn("session evaluation failed, using fallback", "skill", skill, "error", err)
		return FallbackEvaluation()
	}

	var ev Evaluation
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &ev); err != nil {
		slog.Warn("session evaluation parse failed, using fallback", "error", err)
		return FallbackEvaluation()
	}
	if ev.Score < 0 {
		ev.Score = 0
	}
	if ev.Score > 100 {
		ev.Score = 100
	}
	return ev
}

func answerPrompt(questionText, answer, skill string, difficulty question.Difficulty) string {
	return fmt.Sprintf(`You are an encouraging and supportive technical interviewer for %s.

Question: %q

Candidate's Answer: %q

The question is of %s difficulty level.

Your role is to provide personalized, conversational feedback as if speaking directly to the candidate. Balance encouragement with honest assessment:
1. Use a warm, conversational tone (use "you" and "your" frequently)
2. Specifically identify and praise what the candidate did well
3. Clearly but kindly point out specific mistakes or misconceptions
4. Focus on skill-building by explaining not just what to improve but why it matters
5. For scoring, start from 50 as a base score for attempted answers and adjust based on accuracy and completeness

For improvement suggestions:
- Be specific about mistakes made and why they're problematic
- Provide detailed, actionable advice on how to correct these mistakes
- Include examples or specific techniques when helpful
- Prioritize 2-3 improvement areas that would most enhance their skill level

Return a JSON object with the following fields:
{
  "feedback": "3-4 sentences of personalized feedback using 'you/your' that acknowledges strengths, identifies specific mistakes, and offers encouragement",
  "score": number between 0 and 100 (be fair: good attempts should score 70-85, strong answers 85-95),
  "strength": "strongest aspect of their answer in a personalized comment that speaks directly to the candidate",
  "improvement": "specific, actionable suggestion addressing their biggest mistake, explaining both WHAT went wrong and HOW to improve it",
  "additionalImprovements": ["1-2 additional personalized improvement suggestions that clearly identify mistakes and offer specific remedies"]
}

Only return valid JSON.`, skill, questionText, answer, difficulty)
}

func sessionPrompt(answers []string, skill string, difficulty question.Difficulty) string {
	var numbered strings.Builder
	for i, answer := range answers {
		if i > 0 {
			numbered.WriteString("\n\n")
		}
		fmt.Fprintf(&numbered, "Question %d: %s", i+1, answer)
	}

	return fmt.Sprintf(`You are an expert technical interviewer for %s.

I'll provide the candidate's answers to %d interview questions of %s difficulty level.

IMPORTANT: This was a voice-based interview, so the answers may contain grammar mistakes, word repetitions, or incorrect words due to speech recognition errors. Focus on understanding the candidate's intended meaning rather than penalizing speech-to-text transcription issues.

Their answers were:
%s

Provide personalized and conversational interview feedback. Speak directly to the candidate using "you" language.
Make your feedback feel like a one-on-one conversation rather than a formal report.

When evaluating:
1. Look beyond grammar mistakes and repetitions that are likely speech recognition errors
2. Focus on the technical content and conceptual understanding
3. Try to understand what the candidate is trying to convey, even if expressed imperfectly
4. Be lenient with minor verbal stumbles, repetitions of words, or filler phrases

Return only a JSON object with these fields:
{
  "score": overall score from 0 to 100,
  "strengths": "What you did well during the interview, using 'you' language",
  "weaknesses": "Areas where you could improve, using supportive language",
  "suggestions": "Personalized recommendations for how you can enhance your skills",
  "review": "A conversational summary of your performance that feels like direct feedback"
}

Make sure the content is personalized, supportive, and speaks directly to the candidate using "you" form.
Ensure your feedback is grammatically correct and well-written, even if the candidate's answers weren't.
Only return valid JSON.`, skill, len(answers), difficulty, numbered.String())
}

// stripFences removes markdown code fences that models wrap around JSON.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
