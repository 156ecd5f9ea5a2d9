package main

import (
	"fmt"
	"os"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failureStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
