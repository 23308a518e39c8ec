package main

import (
	"os"

	"github.com/novastack/service_layer/cmd/novastack/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
