// The main package for the listings-crawler executable.
package main

import (
	"github.com/hkpdata/listings-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
