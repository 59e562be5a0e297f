// Package speech runs continuous voice recognition for a ringing alarm and
// classifies transcripts into dismiss or snooze intents.
//
// Recognition engines end their listening cycles on their own (silence,
// network hiccups, platform limits), so the Recognizer restarts them after a
// fixed backoff until it is stopped, the session stops ringing, or too many
// cycles fail in a row.
package speech
