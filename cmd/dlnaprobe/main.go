// Package main is the entry point for the dlnaprobe application.
package main

import (
	"os"

	"github.com/jmylchreest/dlnaprobe/cmd/dlnaprobe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
