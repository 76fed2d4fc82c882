package main

import (
	"os"

	contextdcmder "github.com/twinfold/contextd/cmd/contextd"
)

func main() {
	cmd := contextdcmder.NewContextdCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
