package main

import (
	"os"

	"github.com/quicktime/lvntrader/cmd/lvntrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
