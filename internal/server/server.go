package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tarifflab/hsnatlas/internal/queue"
	mid "github.com/tarifflab/hsnatlas/internal/server/middleware"
	"github.com/tarifflab/hsnatlas/internal/server/session"
	"github.com/tarifflab/hsnatlas/internal/storage"
	"github.com/tarifflab/hsnatlas/internal/util"
	"github.com/tarifflab/hsnatlas/pkg/ai"
	oai "github.com/tarifflab/hsnatlas/pkg/ai/ollama"
	gai "github.com/tarifflab/hsnatlas/pkg/ai/openai"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	graphmem "github.com/tarifflab/hsnatlas/pkg/graph/memory"
	graphneo "github.com/tarifflab/hsnatlas/pkg/graph/neo4j"
	"github.com/tarifflab/hsnatlas/pkg/logger"
	"github.com/tarifflab/hsnatlas/pkg/query"
	"github.com/tarifflab/hsnatlas/pkg/retrieval"
	"github.com/tarifflab/hsnatlas/pkg/store"
	storemem "github.com/tarifflab/hsnatlas/pkg/store/memory"
	storepgx "github.com/tarifflab/hsnatlas/pkg/store/pgx"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

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

	aiClient := newAIClient()
	backend := newGraphBackend(ctx)
	defer backend.Close(context.Background())
	vectorStore := newVectorStore(ctx, aiClient)

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	s3 := storage.NewS3Client(ctx)

	// In-process state (memory graph, memory vector index) only exists in
	// this process, so it is built here before the listener starts. Builds
	// against external backends happen in the worker instead.
	_, memGraph := backend.(*graphmem.Backend)
	_, memStore := vectorStore.(*storemem.Store)
	if memGraph || memStore {
		if location := util.GetEnv("DATASET_LOCATION"); location != "" {
			if err := buildGraph(ctx, s3, aiClient, backend, vectorStore, location); err != nil {
				logger.Fatal("Failed to build taxonomy graph", "err", err)
			}
		} else {
			logger.Warn("DATASET_LOCATION not set, starting with an empty graph")
		}
	}

	strategyName := util.GetEnvString("RETRIEVAL_STRATEGY", retrieval.StrategyGraphContext)
	strategy, err := retrieval.New(strategyName, retrieval.Params{
		TopK:       int(util.GetEnvNumeric("RETRIEVAL_TOP_K", 5)),
		AIClient:   aiClient,
		Multiplier: int(util.GetEnvNumeric("RETRIEVAL_MULTIPLIER", 4)),
		Backend:    backend,
		CacheSize:  int(util.GetEnvNumeric("RETRIEVAL_CACHE_SIZE", 128)),
	})
	if err != nil {
		logger.Fatal("Failed to create retrieval strategy", "err", err)
	}

	processor := query.NewProcessor(query.ProcessorParams{
		Strategy:  strategy,
		Store:     vectorStore,
		Generator: aiClient,
	})

	app := &mid.App{
		Queue:     ch,
		S3:        s3,
		AiClient:  aiClient,
		Backend:   backend,
		Store:     vectorStore,
		Processor: processor,
		Sessions:  session.NewRegistry(),
		APIKey:    util.GetEnv("MASTER_API_KEY"),
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}

func newAIClient() ai.Client {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := oai.NewClient(oai.ClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			APIKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewClient(gai.ClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),

			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
	}
}

func newGraphBackend(ctx context.Context) graph.Backend {
	switch name := util.GetEnvString("GRAPH_BACKEND", "memory"); name {
	case "memory":
		return graphmem.NewBackend()
	case "neo4j":
		backend, err := graphneo.NewBackend(ctx, graphneo.BackendParams{
			URI:      util.GetEnv("NEO4J_URI"),
			User:     util.GetEnv("NEO4J_USER"),
			Password: util.GetEnv("NEO4J_PASSWORD"),
			Database: util.GetEnv("NEO4J_DATABASE"),
		})
		if err != nil {
			logger.Fatal("Failed to connect to Neo4j", "err", err)
		}
		return backend
	default:
		logger.Fatal("Unknown graph backend", "backend", name)
		return nil
	}
}

func newVectorStore(ctx context.Context, aiClient ai.Client) store.VectorStore {
	switch name := util.GetEnvString("STORE_BACKEND", "pgx"); name {
	case "pgx":
		databaseURL := util.GetEnv("DATABASE_URL")
		if err := storepgx.RunMigrations(util.GetEnvString("MIGRATIONS_DIR", "migrations"), databaseURL); err != nil {
			logger.Fatal("Failed to apply migrations", "err", err)
		}

		conn, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to database", "err", err)
		}
		conn.Config().AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
		return storepgx.NewStore(storepgx.StoreParams{
			Conn:     conn,
			AIClient: aiClient,
		})
	case "memory":
		return storemem.NewStore(storemem.StoreParams{AIClient: aiClient})
	default:
		logger.Fatal("Unknown vector store backend", "backend", name)
		return nil
	}
}

// buildGraph constructs the taxonomy graph before the server accepts
// traffic, so retrieval never reads a half-built graph. The in-memory
// vector store is seeded from the same record set.
func buildGraph(ctx context.Context, s3Client *awss3.Client, aiClient ai.Client, backend graph.Backend, vs store.VectorStore, location string) error {
	records, err := storage.LoadRecords(ctx, s3Client, location)
	if err != nil {
		return err
	}

	builder := graph.NewBuilder(graph.NewBuilderParams{Backend: backend})
	if err := builder.Build(ctx, records); err != nil {
		return err
	}
	if err := builder.EnrichSiblings(ctx, records); err != nil {
		return err
	}
	if util.GetEnvBool("GRAPH_ENRICH_SIMILARITY", false) {
		threshold := util.GetEnvNumeric("GRAPH_SIMILARITY_THRESHOLD", 0)
		if threshold == 0 {
			threshold = 0.85
		}
		if err := builder.EnrichSimilarity(ctx, records, aiClient, threshold); err != nil {
			return err
		}
	}

	violations, err := builder.ValidateIntegrity(ctx, records)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		logger.Warn("Graph built with integrity violations", "count", len(violations))
	}

	if _, ok := vs.(*storemem.Store); ok {
		if err := vs.Initialize(ctx, common.Documents(records)); err != nil {
			return err
		}
	}
	return nil
}
