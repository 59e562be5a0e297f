// Package outcome implements the journal of resolved alarms.
//
// Every terminal outcome is appended to a file as one protobuf JSON line, so
// an external scheduler can learn whether an alarm was dismissed or snoozed
// and reschedule it accordingly.
package outcome
