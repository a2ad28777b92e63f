package main

import (
	"log"
	"os"

	"github.com/toktrack/usagepipe/cmd"
)

// Build information set by linker.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
