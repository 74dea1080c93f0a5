package tts

import "strings"

// defaultVoicePreferences is the ordered list of voice names tried by
// SelectVoice before falling back to any English voice. The names cover the
// common catalogues across hosted and local synthesis backends.
var defaultVoicePreferences = []string{
	"Google UK English Female",
	"Microsoft Zira",
	"Samantha",
	"Female",
}

// SelectVoice picks the best voice from the given catalogue.
//
// Selection order:
//  1. The first voice whose name contains an entry of the preference list, in
//     list order.
//  2. The first voice whose language starts with "en".
//  3. The first voice in the catalogue.
//
// Returns a zero VoiceProfile and false when the catalogue is empty.
func SelectVoice(voices []VoiceProfile) (VoiceProfile, bool) {
	return SelectVoiceFrom(voices, defaultVoicePreferences)
}

// SelectVoiceFrom is SelectVoice with a caller-supplied preference list.
func SelectVoiceFrom(voices []VoiceProfile, preferences []string) (VoiceProfile, bool) {
	if len(voices) == 0 {
		return VoiceProfile{}, false
	}

	for _, preferred := range preferences {
		for _, v := range voices {
			if strings.Contains(v.Name, preferred) {
				return v, true
			}
		}
	}

	for _, v := range voices {
		if strings.HasPrefix(strings.ToLower(v.Language), "en") {
			return v, true
		}
	}

	return voices[0], true
}
