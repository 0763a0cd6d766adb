package main

import (
	"fmt"
	"os"

	"fincache/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()
	return cli.NewRootCmd(version).Execute()
}
