package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/storygraph/backend/internal/ingest"
	"github.com/storygraph/backend/internal/queue"
	"github.com/storygraph/backend/internal/server"
	"github.com/storygraph/backend/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/storygraph/backend/pkg/cluster"
	"github.com/storygraph/backend/pkg/extract"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/logger"
	"github.com/storygraph/backend/pkg/logger/console"
	"github.com/storygraph/backend/pkg/resolve"
	storepgx "github.com/storygraph/backend/pkg/store/pgx"
	"github.com/storygraph/backend/pkg/wikidata"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
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

	// AI collaborator
	aiClient := server.NewAIClient()

	// Init pgx client
	pgConn, err := pgxpool.New(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()
	pgConn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	storage := storepgx.New(pgConn)
	graph := graphstore.New(storage)
	if err := graph.Load(ctx); err != nil {
		logger.Fatal("Failed to load graph from storage", "err", err)
	}

	resolver := resolve.NewResolver(graph, resolve.Options{
		Canonicalizer: wikidata.NewClient(util.GetEnv("WIKIDATA_URL")),
	})
	engine := cluster.NewEngine(graph, cluster.Config{
		Strategy: cluster.Strategy(util.GetEnvString("CLUSTER_STRATEGY", string(cluster.StrategyGraph))),
	})
	workers := int(util.GetEnvNumeric("EXTRACT_WORKERS", 4))
	orchestrator := extract.NewOrchestrator(graph, resolver, aiClient, workers)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// Feed polling: raw items from configured RSS feeds are published as
	// ingest jobs and flow through the same pipeline as API submissions.
	if feeds := util.GetEnv("RSS_FEEDS"); feeds != "" {
		connector := ingest.NewRSSConnector(strings.Split(feeds, ","))
		interval := time.Duration(util.GetEnvNumeric("RSS_POLL_MINUTES", 15)) * time.Minute
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := publishFeedItems(ctx, connector, graph, ch); err != nil {
					logger.Error("Failed to poll feeds", "err", err)
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}

	// Hourly maintenance: expired ephemeral relations are swept and story
	// metrics recomputed so freshness decays even without new documents.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				swept, err := graph.SweepExpiredRelations(ctx, time.Now().UTC())
				if err != nil {
					logger.Error("Failed to sweep expired relations", "err", err)
				} else if swept > 0 {
					logger.Info("Swept expired actor relations", "count", swept)
				}
				if err := engine.RecomputeAllMetrics(ctx); err != nil {
					logger.Error("Failed to recompute story metrics", "err", err)
				}
			}
		}
	}()

	logger.Info("Listening for messages")

	// Single consumer channel with prefetch=1 so only one message is
	// processed at a time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			consumerTag := fmt.Sprintf("%s_consumer", qName)
			msgs, err := consumerCh.Consume(
				qName,
				consumerTag,
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.IngestQueue:
					processingErr = queue.ProcessIngest(ctx, graph, aiClient, ch, qm.msg.Body)
				case queue.ExtractQueue:
					processingErr = queue.ProcessExtract(ctx, graph, orchestrator, qm.msg.Body)
				case queue.ClusterQueue:
					processingErr = queue.ProcessCluster(ctx, engine, qm.msg.Body)
				}

				// On error send to retry or dead-letter, otherwise ack.
				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					handleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond).String())
				logger.Info("Waiting for next message")
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func publishFeedItems(ctx context.Context, connector *ingest.RSSConnector, graph *graphstore.Store, ch *amqp.Channel) error {
	items, err := connector.Fetch(ctx)
	if err != nil {
		return err
	}

	known := map[string]bool{}
	for _, news := range graph.AllNews() {
		if news.URL != "" {
			known[news.URL] = true
		}
	}

	published := 0
	for _, item := range items {
		if item.URL != "" && known[item.URL] {
			continue
		}
		job := queue.IngestJob{
			Title:       item.Title,
			Summary:     item.Summary,
			FullText:    item.FullText,
			URL:         item.URL,
			Source:      item.Source,
			Author:      item.Author,
			PublishedAt: item.PublishedAt,
		}
		body, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := queue.PublishFIFO(ch, queue.IngestQueue, body); err != nil {
			return err
		}
		published++
	}
	if published > 0 {
		logger.Info("Published feed items for ingestion", "count", published)
	}
	return nil
}

func handleProcessingError(ch *amqp.Channel, msg amqp.Delivery, queueName string) {
	retries := 0
	if val, ok := msg.Headers["x-retries"]; ok {
		if v, ok := val.(int32); ok {
			retries = int(v)
		}
	}

	// After 10 attempts the message goes to the dead-letter queue.
	if retries >= 10 {
		dlqName := queueName + "_dlq"
		logger.Info("Sending message to DLQ", "dlq", dlqName)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			msg.Nack(false, true)
			return
		}
		msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = retries + 1

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msg.Body,
			Headers:     headers,
		},
	)
	if pubErr != nil {
		logger.Error("Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}
