// Command librarycatalog runs the library catalog services.
package main

import (
	"os"

	"github.com/AntonStoeckl/library-catalog-go/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
