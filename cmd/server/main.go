package main

import (
	"github.com/storygraph/backend/internal/server"
	"github.com/storygraph/backend/internal/util"
	"github.com/storygraph/backend/pkg/logger"
	"github.com/storygraph/backend/pkg/logger/console"

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
