// Package version exposes build metadata for the alarm binaries.
//
// Version, Commit and BuildTime are injected via ldflags. UserAgent tags
// voice pack downloads with the running version.
package version
