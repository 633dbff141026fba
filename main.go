// Package main is the entry point for the testkit CLI.
package main

import (
	"github.com/jmcc0nn3ll/test/cmd"
)

func main() {
	cmd.Execute()
}
