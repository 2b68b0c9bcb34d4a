// Package main is the entry point for the docrepo CLI binary.
package main

import (
	"os"

	"github.com/roach88/docrepo/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
