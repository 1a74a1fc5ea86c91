// lucid keeps a full-text index in step with a directory tree and answers
// queries against it while the tree changes.
package main

import (
	"os"

	"github.com/corey/lucid/cmd/lucid/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
