package main

import (
	"os"

	"github.com/taskpilot/taskpilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
