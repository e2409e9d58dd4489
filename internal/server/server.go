package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storygraph/backend/internal/queue"
	mid "github.com/storygraph/backend/internal/server/middleware"
	"github.com/storygraph/backend/internal/util"
	"github.com/storygraph/backend/pkg/ai"
	oai "github.com/storygraph/backend/pkg/ai/ollama"
	gai "github.com/storygraph/backend/pkg/ai/openai"
	"github.com/storygraph/backend/pkg/cluster"
	"github.com/storygraph/backend/pkg/extract"
	"github.com/storygraph/backend/pkg/graphstore"
	"github.com/storygraph/backend/pkg/logger"
	"github.com/storygraph/backend/pkg/resolve"
	storepgx "github.com/storygraph/backend/pkg/store/pgx"
	"github.com/storygraph/backend/pkg/wikidata"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	runMigrations(databaseURL)

	conn, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()
	conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	storage := storepgx.New(conn)
	graph := graphstore.New(storage)
	if err := graph.Load(ctx); err != nil {
		logger.Fatal("Failed to load graph from storage", "err", err)
	}

	aiClient := NewAIClient()
	resolver := resolve.NewResolver(graph, resolve.Options{
		Canonicalizer: wikidata.NewClient(util.GetEnv("WIKIDATA_URL")),
	})
	engine := cluster.NewEngine(graph, cluster.Config{
		Strategy: cluster.Strategy(util.GetEnvString("CLUSTER_STRATEGY", string(cluster.StrategyGraph))),
	})
	workers := int(util.GetEnvNumeric("EXTRACT_WORKERS", 4))
	orchestrator := extract.NewOrchestrator(graph, resolver, aiClient, workers)

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	app := &mid.App{
		DBConn:       conn,
		Queue:        ch,
		Graph:        graph,
		AI:           aiClient,
		Resolver:     resolver,
		Cluster:      engine,
		Orchestrator: orchestrator,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

// NewAIClient builds the extraction/embedding collaborator selected by the
// AI_ADAPTER environment variable.
func NewAIClient() ai.NewsAIClient {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewNewsOllamaClient(oai.NewNewsOllamaClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			APIKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewNewsOpenAIClient(gai.NewNewsOpenAIClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
		})
	}
}

func runMigrations(databaseURL string) {
	migrationsPath := util.GetEnvString("MIGRATIONS_PATH", "file://migrations")

	m, err := migrate.New(migrationsPath, databaseURL)
	if err != nil {
		logger.Fatal("Failed to open migrations", "err", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
	logger.Info("Migrations up to date")
}
