package main

import (
	"github.com/tarifflab/hsnatlas/internal/server"
	"github.com/tarifflab/hsnatlas/internal/util"
	"github.com/tarifflab/hsnatlas/pkg/logger"
	"github.com/tarifflab/hsnatlas/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
