package main

import (
	"os"

	"github.com/ocs-tools/ocsdeck/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
