package gateway

import "github.com/mockmate/mockmate/internal/interview"

// Client-to-server event types.
const (
	// EventSetup creates the session and announces the intro line.
	EventSetup = "setup"
	// EventStart confirms the setup and fetches the question batch. When no
	// session exists yet, it implies a setup with the same fields.
	EventStart = "start"
	// EventTranscript relays one browser recognition result.
	EventTranscript = "transcript"
	// EventTranscriptEnd signals the browser recognizer ended its stream.
	EventTranscriptEnd = "transcript_end"
	// EventDraft replaces the answer draft with typed text.
	EventDraft = "draft"

	EventSubmit  = "submit"
	EventSkip    = "skip"
	EventAdvance = "advance"
	EventReset   = "reset"
)

// Server-to-client message types. Audio is delivered separately as binary
// Opus frames.
const (
	// MessageView carries a full session snapshot.
	MessageView = "view"
	// MessageCapture instructs the browser recognizer: actions "start",
	// "stop", "restart".
	MessageCapture = "capture"
	// MessageError reports a rejected or malformed event.
	MessageError = "error"
)

// Capture control actions.
const (
	CaptureStart   = "start"
	CaptureStop    = "stop"
	CaptureRestart = "restart"
)

// ClientEvent is the envelope for every client-to-server JSON message.
// Fields beyond Type are populated per event type.
type ClientEvent struct {
	Type string `json:"type"`

	// Setup / start.
	Skill      string `json:"skill,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Count      int    `json:"count,omitempty"`

	// Transcript.
	FinalDelta string `json:"finalDelta,omitempty"`
	Interim    string `json:"interim,omitempty"`
	IsFinal    bool   `json:"isFinal,omitempty"`

	// Draft.
	Text string `json:"text,omitempty"`
}

// ServerMessage is the envelope for every server-to-client JSON message.
type ServerMessage struct {
	Type    string          `json:"type"`
	View    *interview.View `json:"view,omitempty"`
	Action  string          `json:"action,omitempty"`
	Attempt int             `json:"attempt,omitempty"`
	Error   string          `json:"error,omitempty"`
}
