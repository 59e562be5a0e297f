package main

import "github.com/oshokin/alarm-clock/cmd/alarm-ringer/cmd"

func main() {
	cmd.Execute()
}
