// Package main is the entry point for the FlakyFence CLI.
package main

import "flakyfence.dev/pkg/flakyfence/cmd"

func main() {
	cmd.Execute()
}
