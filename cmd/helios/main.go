package main

import (
	"os"

	"github.com/heliosquant/helios/cmd/helios/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
