package main

import (
	"os"

	"github.com/ducminhle1904/crypto-decision-core/cmd/decision-core/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
