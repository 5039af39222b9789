package main

import (
	"os"

	"github.com/randalmurphal/spinalcord/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
