package main

import (
	"os"

	"github.com/soyeahso/crewbuilder/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
