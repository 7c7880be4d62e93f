package main

import (
	"os"

	embedsvccmder "github.com/papercomputeco/embedsvc/cmd/embedsvc"
)

func main() {
	cmd := embedsvccmder.NewEmbedsvcCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
