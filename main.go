// The main package for the tilebatch executable.
package main

import (
	"github.com/openheritage/tilebatch/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
