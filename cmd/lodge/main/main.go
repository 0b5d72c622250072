package main

import (
	"fmt"
	"os"

	"github.com/lodge-sh/lodge/cmd/lodge"
)

func main() {
	rootCmd := lodge.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
