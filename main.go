// The main package for the ontario-directory-scraper executable.
package main

import (
	"github.com/cristian081496/ontario-directory-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
