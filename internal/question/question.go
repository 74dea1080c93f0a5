// Package question generates technical interview questions for a skill and
// difficulty via an LLM provider, with template fallbacks and a TTL cache so
// repeated sessions for the same parameters do not re-query the backend.
package question

// Difficulty selects the tier of questions generated for a session.
type Difficulty string

const (
	DifficultyBasic        Difficulty = "basic"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	// DifficultyMixed draws from all three tiers.
	DifficultyMixed Difficulty = "mixed"
)

// IsValid reports whether d is a recognised difficulty tier.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyBasic, DifficultyIntermediate, DifficultyAdvanced, DifficultyMixed:
		return true
	}
	return false
}

// promptPhrase returns the difficulty wording injected into the generation
// prompt.
func (d Difficulty) promptPhrase() string {
	switch d {
	case DifficultyBasic:
		return "basic level questions suitable for beginners"
	case DifficultyIntermediate:
		return "intermediate level questions for those with some experience"
	case DifficultyAdvanced:
		return "advanced questions for experienced professionals"
	case DifficultyMixed:
		return "a mix of basic, intermediate, and advanced questions"
	}
	return string(d)
}

// Question is a single interview question with its reference answer.
type Question struct {
	Text        string     `json:"question"`
	ModelAnswer string     `json:"answer"`
	Difficulty  Difficulty `json:"difficulty"`
}

// Request describes one batch of questions to fetch.
type Request struct {
	Skill      string
	Difficulty Difficulty
	Count      int
}
