package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/relgraph/internal/app"
	"github.com/OFFIS-RIT/relgraph/internal/config"
	"github.com/OFFIS-RIT/relgraph/internal/queue"
	"github.com/OFFIS-RIT/relgraph/internal/server"
	mid "github.com/OFFIS-RIT/relgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/relgraph/internal/util"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"
	"github.com/OFFIS-RIT/relgraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("Failed to close resources", "err", err)
		}
	}()

	handlerApp := &mid.App{Pipeline: a.Pipeline}

	// async extraction is optional for the server
	conn, err := queue.Init(cfg.RabbitURL())
	if err != nil {
		logger.Warn("RabbitMQ unavailable, async extraction disabled", "err", err)
	} else {
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			logger.Fatal("Failed to open channel", "err", err)
		}
		defer ch.Close()
		if err := queue.SetupQueues(ch, []string{queue.ExtractQueue, queue.ResultQueue}); err != nil {
			logger.Fatal("Failed to set up queues", "err", err)
		}
		handlerApp.Queue = queue.NewChannelPublisher(ch)
	}

	e := server.New(handlerApp, cfg.MaxUploadMB)
	if err := server.Start(ctx, e, cfg.Port); err != nil {
		logger.Error("Server stopped", "err", err)
	}
}
