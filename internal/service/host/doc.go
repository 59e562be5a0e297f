// Package host runs many ringing sessions side by side on behalf of a host
// interface. Every session gets a generated ID, an ordered event history
// that late subscribers replay, and a live fan-out of its events. Terminated
// sessions are kept for a retention window and then dropped. With a journal
// configured, each outcome is appended once the session terminates.
package host
