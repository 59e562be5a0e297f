// Package client implements the alarm-ring-signal commands: starting a
// session on a ring host, sending it signals, toggling its audio source and
// watching its events.
package client
