package main

import (
	"os"

	"github.com/harun/agentgate/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
