package question

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mockmate/mockmate/pkg/provider/llm"
)

// Source fetches question batches from an LLM provider. Results are cached;
// LLM or parse failures fall back to deterministic template questions so a
// session can always start.
type Source struct {
	provider llm.Provider
	cache    *Cache
}

// NewSource creates a Source backed by provider. cache may be nil to disable
// caching.
func NewSource(provider llm.Provider, cache *Cache) *Source {
	return &Source{provider: provider, cache: cache}
}

// Fetch returns exactly req.Count questions for the skill and difficulty.
// The second return value reports whether the batch (wholly or partially)
// came from the local fallback templates instead of the generator. Fetch only
// returns an error when ctx is cancelled; generator failures are absorbed by
// the fallback.
func (s *Source) Fetch(ctx context.Context, req Request) ([]Question, bool, error) {
	if req.Count <= 0 {
		return nil, false, fmt.Errorf("question: count must be positive, got %d", req.Count)
	}
	if req.Skill == "" {
		return nil, false, fmt.Errorf("question: skill must not be empty")
	}

	if s.cache != nil {
		if cached := s.cache.Get(req); cached != nil {
			return cached, false, nil
		}
	}

	batch, err := s.generate(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		slog.Warn("question generation failed, using fallback templates",
			"skill", req.Skill,
			"difficulty", req.Difficulty,
			"error", err)
		return FallbackQuestions(req.Skill, req.Difficulty, req.Count), true, nil
	}

	usedFallback := false
	if len(batch) < req.Count {
		// Generator under-delivered; top up from the templates.
		usedFallback = true
		for _, q := range FallbackQuestions(req.Skill, req.Difficulty, req.Count) {
			if len(batch) >= req.Count {
				break
			}
			batch = append(batch, q)
		}
	}
	batch = batch[:req.Count]

	if s.cache != nil && !usedFallback {
		s.cache.Put(req, batch)
	}
	return batch, usedFallback, nil
}

// generate asks the LLM for a question batch and parses the JSON reply.
func (s *Source) generate(ctx context.Context, req Request) ([]Question, error) {
	prompt := fmt.Sprintf(`Generate %d mock technical interview questions for %q.
Focus on %s.
Format output as JSON:
[
  {
    "question": "...",
    "answer": "...",
    "difficulty": "basic" | "intermediate" | "advanced"
  },
  ...
]
Ensure you generate exactly %d questions.
Only return valid JSON.`, req.Count, req.Skill, req.Difficulty.promptPhrase(), req.Count)

	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("question: complete: %w", err)
	}

	var batch []Question
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &batch); err != nil {
		return nil, fmt.Errorf("question: parse reply: %w", err)
	}
	if len(batch) == 0 {
		return nil, fmt.Errorf("question: generator returned no questions")
	}
	return batch, nil
}

// stripFences removes markdown code fences that models wrap around JSON.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
