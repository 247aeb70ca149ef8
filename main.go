package main

import (
	"os"

	"github.com/curatarr/curatarr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
