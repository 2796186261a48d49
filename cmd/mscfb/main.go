package main

import (
	"os"

	"github.com/asalih/go-mscfb-scan/internal/util"
)

func main() {
	util.InitializeLogger(util.InfoLevel)

	if err := Main(os.Args); err != nil {
		logger := util.GetLogger("mscfb")
		logger.Fatal().Err(err).Msg("command failed")
	}
}
