// Package voicecmd recognises spoken control commands in finalised
// transcript segments so an interview can be driven hands-free. Matching is
// tolerant of recognition noise: Double Metaphone phonetic codes filter
// candidates and Jaro-Winkler similarity ranks them, so "submit my answer"
// and "some it answer" both resolve to [Submit].
package voicecmd

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Command is a recognised spoken control action.
type Command int

const (
	// None means the segment carried no control command.
	None Command = iota
	// Submit finalises the current answer.
	Submit
	// Skip abandons the current question.
	Skip
	// Continue advances past feedback to the next question.
	Continue
)

func (c Command) String() string {
	switch c {
	case Submit:
		return "submit"
	case Skip:
		return "skip"
	case Continue:
		return "continue"
	default:
		return "none"
	}
}

// phrase is one canonical spoken form of a command.
type phrase struct {
	text    string
	tokens  []string
	codes   map[string]struct{}
	command Command
}

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched phrase to be accepted. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic overlap is found. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher maps transcript segments to commands. Read-only after
// construction, so safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	phrases           []phrase
}

// New returns a Matcher for the standard command vocabulary.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}

	vocabulary := []struct {
		text    string
		command Command
	}{
		{"submit answer", Submit},
		{"submit my answer", Submit},
		{"skip question", Skip},
		{"skip this question", Skip},
		{"continue", Continue},
		{"next question", Continue},
	}
	for _, v := range vocabulary {
		tokens := strings.Fields(v.text)
		m.phrases = append(m.phrases, phrase{
			text:    v.text,
			tokens:  tokens,
			codes:   codesForTokens(tokens),
			command: v.command,
		})
	}
	return m
}

// Match inspects one finalised transcript segment and returns the command it
// carries, with the ranking confidence. A segment that is merely answer
// content returns (None, 0).
//
// Only short segments are considered: a command is an utterance of its own,
// not a suffix of a long answer, so segments longer than five words never
// match.
func (m *Matcher) Match(segment string) (Command, float64) {
	segLower := strings.ToLower(strings.TrimSpace(segment))
	segLower = strings.TrimRight(segLower, ".!?,")
	tokens := strings.Fields(segLower)
	if len(tokens) == 0 || len(tokens) > 5 {
		return None, 0
	}

	segCodes := codesForTokens(tokens)

	var bestCmd Command
	var bestScore float64
	var bestPhonetic bool

	for _, p := range m.phrases {
		phonetic := codesOverlap(segCodes, p.codes)
		score := bestJWScore(tokens, p.tokens, segLower, p.text)

		if phonetic {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				bestCmd, bestScore, bestPhonetic = p.command, score, true
			}
		} else if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			bestCmd, bestScore = p.command, score
		}
	}

	if bestScore == 0 {
		return None, 0
	}
	return bestCmd, bestScore
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity between segment and
// phrase across full-string, space-stripped, and whole-phrase token-window
// comparisons.
func bestJWScore(segTokens, phraseTokens []string, segFull, phraseFull string) float64 {
	score := matchr.JaroWinkler(segFull, phraseFull, false)

	if len(segTokens) > 1 || len(phraseTokens) > 1 {
		concat1 := strings.Join(segTokens, "")
		concat2 := strings.Join(phraseTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	// Sliding window of phrase length over the segment, so "please skip
	// question" still aligns with "skip question".
	n := len(phraseTokens)
	for i := 0; i+n <= len(segTokens); i++ {
		window := strings.Join(segTokens[i:i+n], " ")
		if s := matchr.JaroWinkler(window, phraseFull, false); s > score {
			score = s
		}
	}

	return score
}
