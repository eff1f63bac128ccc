package main

import "piplock/cmd"

var version = "0.3.0"

func main() {
	cmd.Version = version
	cmd.Execute()
}
