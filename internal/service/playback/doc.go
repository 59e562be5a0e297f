// Package playback runs the audible leaves of a ringing alarm: the spoken
// wake message and the synthesized fallback tone.
//
// Both are self-repeating loops behind a Handle. A failing device is never
// returned to the caller of Start; it is reported once through the onFailed
// callback so the session can fall back to the other source.
package playback
