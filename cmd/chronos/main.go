// Package main is the entry point for the chronos CLI tool.
package main

import (
	"os"

	"github.com/aidanlsb/chronos/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
