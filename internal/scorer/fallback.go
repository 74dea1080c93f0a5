package scorer

// FallbackFeedback returns the fixed per-answer payload used when the remote
// grader fails or replies with unparseable content.
func FallbackFeedback() Feedback {
	return Feedback{
		FeedbackText: "Your answer shows good understanding of the concept. I appreciate your effort to address the key points. With a few more specific examples, your response would be even stronger.",
		Score:        78,
		Strength:     "Good fundamental knowledge and clear explanation of the core concepts.",
		Improvement:  "Add 2-3 specific technical examples to illustrate your points - this will demonstrate deeper practical understanding.",
		WasFallback:  true,
	}
}

// FallbackEvaluation returns the fixed whole-session payload used when the
// remote evaluator fails or replies with unparseable content.
func FallbackEvaluation() Evaluation {
	return Evaluation{
		Score:       65,
		Review:      "You demonstrated solid knowledge in several areas, though there were some inconsistencies in your explanations. I appreciated your effort to address the questions comprehensively.",
		Strengths:   "You showed a good understanding of key concepts and were able to articulate your thoughts on complex topics.",
		Weaknesses:  "The depth of your technical explanations could be improved in some areas, particularly when discussing more advanced concepts.",
		Suggestions: "Practice articulating complex technical concepts more clearly with specific examples. Consider preparing concise explanations for common interview topics in advance.",
		WasFallback: true,
	}
}

// SkipFeedback returns the synthesized payload for a skipped question. No
// remote call is made for skips.
func SkipFeedback(questionNumber int) Feedback {
	return Feedback{
		QuestionNumber: questionNumber,
		FeedbackText:   "You chose to skip this question. It's okay to skip questions you're unsure about, but try to attempt as many as you can in a real interview.",
	}
}
