// Package command implements the alarm capability providers on top of
// external programs: a text-to-speech engine, a WAV player, a vibration
// helper and a streaming speech recognizer.
//
// Every device is configured with a command line. An empty command line, or
// one whose program is not on PATH, makes the device report itself as
// unsupported so the session can fall back without ever running it.
package command
