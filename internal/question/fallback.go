package question

import "fmt"

// fallbackTemplates lists the template questions per tier. The %s verb is the
// skill name.
var fallbackTemplates = map[Difficulty][]Question{
	DifficultyBasic: {
		{
			Text:        "What are the core concepts of %s?",
			ModelAnswer: "This would typically cover the fundamental principles of %s.",
			Difficulty:  DifficultyBasic,
		},
		{
			Text:        "Explain the basic syntax and structure of %s.",
			ModelAnswer: "The basic syntax includes...",
			Difficulty:  DifficultyBasic,
		},
		{
			Text:        "What development environments or tools are commonly used with %s?",
			ModelAnswer: "Common tools include...",
			Difficulty:  DifficultyBasic,
		},
	},
	DifficultyIntermediate: {
		{
			Text:        "Explain how you would implement a complex feature in %s.",
			ModelAnswer: "A good answer would discuss the architecture, design patterns, and best practices in %s.",
			Difficulty:  DifficultyIntermediate,
		},
		{
			Text:        "How do you handle errors and exceptions in %s?",
			ModelAnswer: "Best practices include proper error handling strategies such as...",
			Difficulty:  DifficultyIntermediate,
		},
		{
			Text:        "How do you ensure code quality when working with %s?",
			ModelAnswer: "Code quality can be ensured through testing, code reviews, and following best practices like...",
			Difficulty:  DifficultyIntermediate,
		},
	},
	DifficultyAdvanced: {
		{
			Text:        "What are the latest developments in %s and how would you use them?",
			ModelAnswer: "Recent developments include... and they can be used for...",
			Difficulty:  DifficultyAdvanced,
		},
		{
			Text:        "Describe how you would optimize performance in a large-scale %s application.",
			ModelAnswer: "Performance optimization techniques include...",
			Difficulty:  DifficultyAdvanced,
		},
		{
			Text:        "How would you architect a distributed system using %s?",
			ModelAnswer: "A distributed architecture would involve...",
			Difficulty:  DifficultyAdvanced,
		},
	},
}

// FallbackQuestions returns exactly count deterministic template questions
// for the skill and difficulty, repeating the pool as needed. Mixed (or any
// unrecognised tier) draws from all three pools in tier order.
func FallbackQuestions(skill string, difficulty Difficulty, count int) []Question {
	var pool []Question
	if tier, ok := fallbackTemplates[difficulty]; ok && difficulty != DifficultyMixed {
		pool = tier
	} else {
		for _, d := range []Difficulty{DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced} {
			pool = append(pool, fallbackTemplates[d]...)
		}
	}

	out := make([]Question, 0, count)
	for len(out) < count {
		for _, tmpl := range pool {
			if len(out) >= count {
				break
			}
			out = append(out, Question{
				Text:        sprintfSkill(tmpl.Text, skill),
				ModelAnswer: sprintfSkill(tmpl.ModelAnswer, skill),
				Difficulty:  tmpl.Difficulty,
			})
		}
	}
	return out
}

// sprintfSkill substitutes every %s in the template with skill.
func sprintfSkill(tmpl, skill string) string {
	args := make([]any, 0, 2)
	for i := 0; i+1 < len(tmpl); i++ {
		if tmpl[i] == '%' && tmpl[i+1] == 's' {
			args = append(args, skill)
		}
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}
