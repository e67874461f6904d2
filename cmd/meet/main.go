package main

import (
	"os"

	"github.com/dkeye/meetcore/cmd/meet/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
