package main

import (
	"os"

	"github.com/vladweat/optiquest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
