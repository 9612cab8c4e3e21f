package main

import (
	"os"

	"quantbot/cmd/quantbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
