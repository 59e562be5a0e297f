package speech

import (
	"strings"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
)

//nolint:gochecknoglobals // Fixed vocabularies.
var (
	dismissKeywords = []string{"stop", "dismiss", "turn off", "shut up", "quiet", "cancel", "end"}
	snoozeKeywords  = []string{"snooze", "five more minutes", "later", "wait", "sleep", "more time"}
)

// MapIntent classifies a transcript by keyword containment.
// Dismiss keywords are checked first, so a transcript matching both sets dismisses.
func MapIntent(transcript string) alarm.Intent {
	text := strings.ToLower(strings.TrimSpace(transcript))
	if text == "" {
		return alarm.IntentUnrecognized
	}

	if containsAny(text, dismissKeywords) {
		return alarm.IntentDismiss
	}

	if containsAny(text, snoozeKeywords) {
		return alarm.IntentSnooze
	}

	return alarm.IntentUnrecognized
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	return false
}
