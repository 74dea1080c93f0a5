package health

import (
	"context"
	"errors"
	"testing"

	ttsmock "github.com/mockmate/mockmate/pkg/provider/tts/mock"
)

func TestLLMCheckerNilProvider(t *testing.T) {
	c := LLMChecker(nil)
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("want error for nil provider")
	}
}

func TestTTSCheckerProbesVoices(t *testing.T) {
	p := &ttsmock.Provider{}
	c := TTSChecker(p)
	if err := c.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ListCalls != 1 {
		t.Fatalf("ListVoices called %d times, want 1", p.ListCalls)
	}
}

func TestTTSCheckerReportsFailure(t *testing.T) {
	p := &ttsmock.Provider{ListErr: errors.New("catalogue down")}
	c := TTSChecker(p)
	if err := c.Check(context.Background()); err == nil {
		t.Fatal("want error when voice catalogue is unreachable")
	}
}
