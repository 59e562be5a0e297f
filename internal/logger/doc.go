// Package logger wraps zap to provide:
//   - a global sugared logger writing console-encoded lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - leveled convenience functions (Infof, WarnKV, etc.).
//
// Ringing sessions, devices and the gRPC host all receive a context and pull
// the logger from it, so every line carries the session it belongs to.
package logger
