package main

import (
	"os"

	"github.com/loqalabs/voicedoc/cmd/voicedoc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
