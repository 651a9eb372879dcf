// The main package for the inspection-crawler executable.
package main

import (
	"github.com/data-to-insight/inspection-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
