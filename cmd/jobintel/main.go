package main

import (
	"errors"
	"os"

	"github.com/jobintel-labs/jobintel-go/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, config.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
