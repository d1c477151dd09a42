package main

import (
	"os"

	"github.com/msto63/hatsuon/cmd/hatsuon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
