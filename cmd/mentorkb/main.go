package main

import (
	"fmt"
	"os"

	"github.com/veldtlabs/mentorkb/internal/cli"
)

func main() {
	rootCmd := cli.RootCmd()

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
