package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/mockmate/mockmate/pkg/provider/tts"
	ttsmock "github.com/mockmate/mockmate/pkg/provider/tts/mock"
)

func TestTTSFallbackSynthesizePrimary(t *testing.T) {
	primary := &ttsmock.Provider{Chunks: [][]byte{[]byte("audio")}}
	backup := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	text := make(chan string, 1)
	text <- "hello"
	close(text)

	ch, err := fb.SynthesizeStream(context.Background(), text, tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var total int
	for chunk := range ch {
		total += len(chunk)
	}
	if total == 0 {
		t.Fatal("no audio received from primary")
	}
	if len(backup.SynthesizeCalls) != 0 {
		t.Fatalf("backup called %d times, want 0", len(backup.SynthesizeCalls))
	}
}

func TestTTSFallbackSynthesizeFailsOver(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("tts down")}
	backup := &ttsmock.Provider{Chunks: [][]byte{[]byte("backup audio")}}

	fb := NewTTSFallback(primary, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	text := make(chan string, 1)
	text <- "hello"
	close(text)

	ch, err := fb.SynthesizeStream(context.Background(), text, tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []byte
	for chunk := range ch {
		got = append(got, chunk...)
	}
	if string(got) != "backup audio" {
		t.Fatalf("audio = %q, want backup audio", got)
	}
}

// consumingFailer drains the whole text channel before failing, modeling a
// backend that dies mid-request after reading its input.
type consumingFailer struct{}

func (consumingFailer) SynthesizeStream(_ context.Context, text <-chan string, _ tts.VoiceProfile) (<-chan []byte, error) {
	for range text {
	}
	return nil, errors.New("died after consuming input")
}

func (consumingFailer) ListVoices(context.Context) ([]tts.VoiceProfile, error) {
	return nil, nil
}

func TestTTSFallbackReplaysTextAfterConsumingPrimary(t *testing.T) {
	backup := &ttsmock.Provider{Chunks: [][]byte{[]byte("backup audio")}}

	fb := NewTTSFallback(consumingFailer{}, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	text := make(chan string, 2)
	text <- "hello"
	text <- "world"
	close(text)

	ch, err := fb.SynthesizeStream(context.Background(), text, tts.VoiceProfile{ID: "v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range ch {
	}

	if len(backup.SynthesizeCalls) != 1 {
		t.Fatalf("backup called %d times, want 1", len(backup.SynthesizeCalls))
	}
	got := backup.SynthesizeCalls[0].Text
	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("backup received fragments %v, want [hello world]", got)
	}
}

func TestTTSFallbackListVoices(t *testing.T) {
	primary := &ttsmock.Provider{ListErr: errors.New("down")}
	backup := &ttsmock.Provider{Voices: []tts.VoiceProfile{{ID: "b1", Name: "Backup Voice"}}}

	fb := NewTTSFallback(primary, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	voices, err := fb.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "b1" {
		t.Fatalf("voices = %v, want one voice b1", voices)
	}
}

func TestTTSFallbackAllFail(t *testing.T) {
	primary := &ttsmock.Provider{SynthesizeErr: errors.New("down")}
	backup := &ttsmock.Provider{SynthesizeErr: errors.New("also down")}

	fb := NewTTSFallback(primary, "primary", fastFallbackConfig())
	fb.AddFallback("backup", backup)

	text := make(chan string)
	close(text)

	_, err := fb.SynthesizeStream(context.Background(), text, tts.VoiceProfile{})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
