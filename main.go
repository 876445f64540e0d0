package main

import (
	"os"

	"github.com/ketwaroo/appscreener/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
