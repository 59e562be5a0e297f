package main

import "github.com/oshokin/alarm-clock/cmd/alarm-ring-signal/cmd"

func main() {
	cmd.Execute()
}
