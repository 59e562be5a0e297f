// Package integration exercises the ring host end to end over real sockets.
package integration
