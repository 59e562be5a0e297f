// Package server runs the ring host: a gRPC server that starts alarm
// sessions on request, routes signals to them and streams their events.
package server
