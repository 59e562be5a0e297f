// Package alarm contains the core domain types of a ringing alarm.
//
// It defines the Session (one per firing), its State machine values, the
// Method and Action a Resolution records, the host Signal set, the voice
// Intent classification, the terminal Outcome, capability notices and the
// error taxonomy shared by every leaf of a session.
package alarm
