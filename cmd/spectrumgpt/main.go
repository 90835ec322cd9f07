// Command spectrumgpt is the entry point for the SpectrumGPT design-system
// assistant. It provides a CLI interface (via Cobra) and an HTTP server that
// answers questions strictly from the indexed documentation corpus.
package main

import (
	"fmt"
	"os"

	"github.com/spectrumops/spectrumgpt/cmd/spectrumgpt/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
