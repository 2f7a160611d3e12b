package main

import (
	"fmt"
	"os"

	"github.com/morozRed/maplink/internal/cli"
)

var version = "0.1.0-dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "maplink: %v\n", err)
		os.Exit(1)
	}
}
