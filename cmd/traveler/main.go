// Package main provides the entry point for the traveler CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/traveler/cmd/traveler/commands"
)

func main() {
	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
