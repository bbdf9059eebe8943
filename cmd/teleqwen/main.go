// Package main is the entry point for the teleqwen CLI.
package main

import (
	"os"

	"github.com/TeleQwen/TeleQwen/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
