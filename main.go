package main

import "github.com/sidetrack-cli/sidetrack/cmd"

func main() {
	cmd.Execute()
}
