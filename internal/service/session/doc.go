// Package session implements the controller that owns one ringing alarm from
// the moment it fires until it is dismissed, snoozed or cancelled.
//
// The Controller starts the leaves (voice or tone, haptics, recognition)
// concurrently, reacts to their events, routes every resolution attempt
// through a first-writer-wins gate and tears everything down exactly once.
// Host notifications are delivered in order from a single goroutine, so a
// sink may call back into the controller without deadlocking it.
package session
