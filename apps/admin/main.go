package main

import (
	"fmt"
	"os"

	"github.com/trezcool/attendr/core"
	logsvc "github.com/trezcool/attendr/services/logger"
)

func main() {
	conf := core.NewConfig()

	sugar, err := logsvc.NewZap("ADMIN", conf.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(sugar, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	defer func() { _ = logger.Sync() }()

	cli := commandLine{conf: conf, logger: logger, out: os.Stdout}
	err = cli.run(os.Args)
	if cli.db != nil {
		_ = cli.db.Close()
	}
	if err != nil {
		logger.Error("admin command failed", err)
		fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		_ = logger.Sync()
		os.Exit(1)
	}
}
