package interview

// EntryKind tags a transcript entry.
type EntryKind string

const (
	EntryQuestion EntryKind = "question"
	EntryAnswer   EntryKind = "answer"
	EntrySystem   EntryKind = "system"
)

// TranscriptEntry is one record in the session's append-only audit log. An
// Answer entry always immediately follows its Question entry; the history
// panel relies on that adjacency to pair them.
type TranscriptEntry struct {
	Kind EntryKind `json:"kind"`

	// Index is the zero-based question index, meaningful for Question
	// entries only.
	Index int `json:"index,omitempty"`

	Text string `json:"text"`
}
