package main

import (
	"os"

	"github.com/oklahomer/go-discord-bridge/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
