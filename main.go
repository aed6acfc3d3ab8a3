package main

import (
	"os"

	"github.com/jtandoc/speakquest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
