package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	// Panic recovery
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Application crashed: %v\n", r)
			os.Exit(1)
		}
	}()

	root := newRootCmd(newApp())
	root.Version = version
	root.SetVersionTemplate(`{{printf "prefixjoin version %s\n" .Version}}`)
	if err := root.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}
