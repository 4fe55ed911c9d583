package main

import (
	"os"

	"github.com/bankpipe-dev/bankpipe/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
