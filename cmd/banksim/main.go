package main

import (
	"os"

	"github.com/banksim-dev/banksim/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
