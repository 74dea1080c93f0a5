package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mockmate/mockmate/pkg/provider/llm"
	llmmock "github.com/mockmate/mockmate/pkg/provider/llm/mock"
)

func fastFallbackConfig() FallbackConfig {
	return FallbackConfig{CircuitBreaker: CircuitBreakerConfig{
		MaxFailures: 1,
		Cooldown:    time.Hour,
	}}
}

func TestLLMFallbackCompletePrimary(t *testing.T) {
	primary := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from primary"},
	}
	backup := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from backup"},
	}

	fb := NewLLMFallback(primary, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from primary" {
		t.Fatalf("content = %q, want from primary", resp.Content)
	}
	if len(backup.CompleteCalls) != 0 {
		t.Fatalf("backup called %d times, want 0", len(backup.CompleteCalls))
	}
}

func TestLLMFallbackCompleteFailsOver(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("backend down")}
	backup := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "from backup"},
	}

	fb := NewLLMFallback(primary, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	resp, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "from backup" {
		t.Fatalf("content = %q, want from backup", resp.Content)
	}

	// Primary breaker tripped; second call goes straight to the backup.
	_, err = fb.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(primary.CompleteCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.CompleteCalls))
	}
}

func TestLLMFallbackAllFail(t *testing.T) {
	primary := &llmmock.Provider{CompleteErr: errors.New("down")}
	backup := &llmmock.Provider{CompleteErr: errors.New("also down")}

	fb := NewLLMFallback(primary, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	_, err := fb.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestLLMFallbackStreamCompletion(t *testing.T) {
	primary := &llmmock.Provider{
		StreamChunks: []llm.Chunk{{Text: "hello "}, {Text: "world"}},
	}

	fb := NewLLMFallback(primary, "primary", fastFallbackConfig())

	ch, err := fb.StreamCompletion(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got string
	for chunk := range ch {
		got += chunk.Text
	}
	if got != "hello world" {
		t.Fatalf("streamed text = %q, want %q", got, "hello world")
	}
}

func TestLLMFallbackBackends(t *testing.T) {
	fb := NewLLMFallback(&llmmock.Provider{}, "primary", FallbackConfig{})
	fb.AddFallback("backup", &llmmock.Provider{})

	names := fb.Backends()
	if len(names) != 2 || names[0] != "primary" || names[1] != "backup" {
		t.Fatalf("backends = %v, want [primary backup]", names)
	}
}
