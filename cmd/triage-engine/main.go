package main

import (
	"os"

	"github.com/StrawberryNinjago/platformtriage/cmd/triage-engine/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(commands.ExitCode(err))
	}
}
