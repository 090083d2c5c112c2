// Package main is the leapconn command-line entrypoint.
package main

import (
	"os"

	"github.com/leapstack-labs/leapconn/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
