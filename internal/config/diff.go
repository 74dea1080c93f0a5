package config

import "slices"

// ConfigDiff describes what changed between two configs. Only fields that can
// be safely hot-reloaded are tracked; provider changes require a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// InterviewChanged is true when any session default or speech tuning
	// knob changed. New sessions pick the new values up; running sessions
	// keep the parameters they started with.
	InterviewChanged bool
}

// HasChanges reports whether the diff contains anything to apply.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.InterviewChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !interviewEqual(old.Interview, new.Interview) {
		d.InterviewChanged = true
	}
	return d
}

func interviewEqual(a, b InterviewConfig) bool {
	return a.DefaultSkill == b.DefaultSkill &&
		a.DefaultDifficulty == b.DefaultDifficulty &&
		a.DefaultQuestionCount == b.DefaultQuestionCount &&
		a.MaxQuestionCount == b.MaxQuestionCount &&
		a.Locale == b.Locale &&
		a.Cache == b.Cache &&
		a.Capture == b.Capture &&
		a.Playback.ChunkRunes == b.Playback.ChunkRunes &&
		a.Playback.ChunkTimeout == b.Playback.ChunkTimeout &&
		a.Playback.SpeedFactor == b.Playback.SpeedFactor &&
		slices.Equal(a.Playback.VoicePreferences, b.Playback.VoicePreferences)
}
