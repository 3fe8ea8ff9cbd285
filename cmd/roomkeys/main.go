package main

import (
	"os"

	"roomkeys/cmd/roomkeys/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
