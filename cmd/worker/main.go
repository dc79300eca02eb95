package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/relgraph/internal/app"
	"github.com/OFFIS-RIT/relgraph/internal/config"
	"github.com/OFFIS-RIT/relgraph/internal/queue"
	"github.com/OFFIS-RIT/relgraph/internal/util"
	"github.com/OFFIS-RIT/relgraph/pkg/ai"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"
	"github.com/OFFIS-RIT/relgraph/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "err", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			logger.Error("Failed to close resources", "err", err)
		}
	}()

	// Init rabbitmq
	conn, err := queue.Init(cfg.RabbitURL())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.ExtractQueue, queue.ResultQueue}); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewChannelPublisher(ch)

	// prefetch=1, one job at a time
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.ExtractQueue,
		queue.ExtractQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.ExtractQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.ExtractQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("Message channel closed", "queue", queue.ExtractQueue)
				return
			}

			startTime := time.Now()
			logger.Info("Received message", "queue", queue.ExtractQueue)

			processingErr := queue.ProcessExtractionMessage(ctx, a.Pipeline, publisher, msg.Body)
			if processingErr != nil {
				logger.Error("Error processing message", "queue", queue.ExtractQueue, "err", processingErr)
				permanent := errors.Is(processingErr, queue.ErrInvalidMessage)
				queue.HandleProcessingError(context.WithoutCancel(ctx), publisher, msg, queue.ExtractQueue, permanent)
			} else {
				if err := msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", queue.ExtractQueue)
			}

			logMetrics(a.AI, time.Since(startTime))
			logger.Info("Waiting for next message")
			a.AI.ResetMetrics()
		}
	}
}

func logMetrics(client ai.GraphAIClient, processing time.Duration) {
	metrics := client.GetMetrics()
	aiDuration := time.Duration(metrics.DurationMs) * time.Millisecond
	logger.Info(
		"AI Metrics",
		"input_tokens", metrics.InputTokens,
		"output_tokens", metrics.OutputTokens,
		"total_tokens", metrics.TotalTokens,
		"duration", formatDuration(aiDuration),
	)
	logger.Info("Processing time", "duration", formatDuration(processing))
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
