// The main package for the review-crawler executable.
package main

import (
	"os"

	"github.com/gohgeo-lang/back-auto-review-insight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
