// Command coverid computes cover-song codes and evaluates clique retrieval.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
