package main

import (
	"os"

	"tequest-attempts/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
