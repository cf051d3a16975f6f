// Package main is the entry point for the cube CLI binary.
package main

import (
	"os"

	cli "cube-demo/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
