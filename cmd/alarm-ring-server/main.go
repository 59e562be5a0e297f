package main

import "github.com/oshokin/alarm-clock/cmd/alarm-ring-server/cmd"

func main() {
	cmd.Execute()
}
