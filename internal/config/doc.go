// Package config defines the alarm clock settings file and provides helpers
// to load, validate and save it in YAML format.
//
// The Config type holds the host interface address, the per-session options
// passed to every ringing alarm, the timing of each leaf expressed in time
// units, the shell commands backing each device and the voice pack location.
package config
