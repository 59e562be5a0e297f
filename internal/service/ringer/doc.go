// Package ringer wires configuration, command devices and the session
// controller into a runnable alarm.
//
// NewLeavesFactory turns settings into the per-session leaves used both by
// the local ringer and by the ring host server. Run rings one alarm in the
// foreground, reading signals from an input stream line by line and printing
// every host event until the alarm is resolved. OpenJournal opens the outcome
// journal both of them share.
package ringer
