package main

import (
	"os"

	"github.com/fluxbase-eu/fluxpack/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.GetFormatter().PrintError(err.Error())
		os.Exit(1)
	}
}
