package main

import (
	"os"

	"github.com/itsmostafa/gomanhole/cmd/manholed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
