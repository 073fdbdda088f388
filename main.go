// Package main is the entry point for the tcpsniff packet dissector.
package main

import (
	"os"

	"firestige.xyz/tcpsniff/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		cmd.PrintError(os.Stderr, err)
		os.Exit(cmd.ExitCode(err))
	}
}
