package main

import (
	"os"

	"github.com/youngcan/wyckoff-funnel/cmd/funnel/commands"
)

// main is the entry point for the funnel CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
