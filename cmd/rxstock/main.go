package main

import (
	"os"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/pkg/logger"
)

func main() {
	cli := newCLI(config.Load)
	if err := cli.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("rxstock failed")
	}
}
