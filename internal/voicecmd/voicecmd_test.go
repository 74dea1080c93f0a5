package voicecmd

import "testing"

func TestMatchExactPhrases(t *testing.T) {
	m := New()
	tests := []struct {
		segment string
		want    Command
	}{
		{"submit answer", Submit},
		{"Submit answer.", Submit},
		{"submit my answer", Submit},
		{"skip question", Skip},
		{"skip this question", Skip},
		{"continue", Continue},
		{"Next question", Continue},
	}

	for _, tt := range tests {
		got, confidence := m.Match(tt.segment)
		if got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.segment, got, tt.want)
		}
		if confidence <= 0 {
			t.Errorf("Match(%q) confidence = %v, want > 0", tt.segment, confidence)
		}
	}
}

func TestMatchToleratesRecognitionNoise(t *testing.T) {
	m := New()
	tests := []struct {
		segment string
		want    Command
	}{
		{"submit anser", Submit},
		{"skip the question", Skip},
		{"please continue", Continue},
	}

	for _, tt := range tests {
		if got, _ := m.Match(tt.segment); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.segment, got, tt.want)
		}
	}
}

func TestMatchIgnoresAnswerContent(t *testing.T) {
	m := New()
	segments := []string{
		"",
		"   ",
		"it depends",
		"closures capture their lexical scope",
		"I would use a goroutine and a channel to coordinate the workers",
	}

	for _, segment := range segments {
		if got, confidence := m.Match(segment); got != None {
			t.Errorf("Match(%q) = %v (confidence %v), want None", segment, got, confidence)
		}
	}
}

func TestMatchLongSegmentsNeverCommand(t *testing.T) {
	m := New()
	// Even a verbatim command phrase buried in a long answer is content.
	segment := "at the end of my explanation I would submit answer candidates for review"
	if got, _ := m.Match(segment); got != None {
		t.Errorf("Match(long segment) = %v, want None", got)
	}
}

func TestMatchThresholdOptions(t *testing.T) {
	strict := New(WithPhoneticThreshold(0.999), WithFuzzyThreshold(0.999))
	if got, _ := strict.Match("submit anser"); got != None {
		t.Errorf("strict Match(%q) = %v, want None", "submit anser", got)
	}

	// Exact phrases still score 1.0 and pass any threshold below that.
	if got, _ := strict.Match("submit answer"); got != Submit {
		t.Errorf("strict Match(%q) = %v, want Submit", "submit answer", got)
	}
}

func TestCommandString(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{None, "none"},
		{Submit, "submit"},
		{Skip, "skip"},
		{Continue, "continue"},
	}
	for _, tt := range tests {
		if got := tt.cmd.String(); got != tt.want {
			t.Errorf("Command(%d).String() = %q, want %q", tt.cmd, got, tt.want)
		}
	}
}
