package main

import (
	"os"

	"github.com/soundprediction/embedkit/cmd/embedkit"
)

func main() {
	if err := embedkit.Execute(); err != nil {
		os.Exit(1)
	}
}
