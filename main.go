// Package main is the entry point for the tlareport application
package main

import (
	"github.com/ethpandaops/tlareport/cmd"
)

func main() {
	cmd.Execute()
}
