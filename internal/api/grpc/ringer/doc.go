// Package ringer implements the gRPC transport of the ring host.
//
// The service alarmclock.v1.RingerService is declared by hand on top of the
// protobuf well-known types: requests and events travel as
// google.protobuf.Struct, identifiers and results as wrapper values. The
// server adapts calls to a session manager; the client mirrors the teacher
// style client with a per-call timeout.
package ringer
