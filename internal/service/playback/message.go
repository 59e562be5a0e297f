package playback

import (
	"fmt"
	"strings"
	"time"
)

// Voice moods understood by ComposeMessage and by voice pack clip names.
const (
	MoodGentle        = "gentle"
	MoodMotivational  = "motivational"
	MoodDrillSergeant = "drill-sergeant"
	MoodSweetAngel    = "sweet-angel"
	MoodAnimeHero     = "anime-hero"
	MoodDemonLord     = "demon-lord"
	MoodLazyCat       = "lazy-cat"
)

// moodTemplates take the label and the spoken clock time.
//
//nolint:gochecknoglobals // Static message catalogue.
var moodTemplates = map[string]string{
	MoodGentle:        "Good morning. It's %[2]s. Time for %[1]s, take it slow.",
	MoodMotivational:  "It's %[2]s and today is yours! Get up, %[1]s is waiting.",
	MoodDrillSergeant: "Up, up, up! It is %[2]s! %[1]s, now! Move it!",
	MoodSweetAngel:    "Rise and shine, sweetheart. It's %[2]s and %[1]s is calling.",
	MoodAnimeHero:     "The hour has come, %[2]s! Awaken your power for %[1]s!",
	MoodDemonLord:     "Mortal. It is %[2]s. %[1]s demands your presence. Rise.",
	MoodLazyCat:       "Mrrp... it's %[2]s. Even I'm up. Something about %[1]s.",
}

// Moods lists the supported voice moods in a stable order.
func Moods() []string {
	return []string{
		MoodGentle,
		MoodMotivational,
		MoodDrillSergeant,
		MoodSweetAngel,
		MoodAnimeHero,
		MoodDemonLord,
		MoodLazyCat,
	}
}

// NormalizeMood returns the canonical mood name, or gentle for unknown input.
func NormalizeMood(mood string) string {
	mood = strings.ToLower(strings.TrimSpace(mood))
	if _, ok := moodTemplates[mood]; ok {
		return mood
	}

	return MoodGentle
}

// ComposeMessage builds the wake message for an alarm.
func ComposeMessage(label, mood string, now time.Time) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "your alarm"
	}

	return fmt.Sprintf(moodTemplates[NormalizeMood(mood)], label, now.Format("3:04 PM"))
}
