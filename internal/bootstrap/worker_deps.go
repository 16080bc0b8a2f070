package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/InboxGenie/IG-Gmail-MCP/adapter/out/memory"
	"github.com/InboxGenie/IG-Gmail-MCP/adapter/out/mongodb"
	"github.com/InboxGenie/IG-Gmail-MCP/adapter/out/persistence"
	"github.com/InboxGenie/IG-Gmail-MCP/config"
	"github.com/InboxGenie/IG-Gmail-MCP/core/agent/llm"
	"github.com/InboxGenie/IG-Gmail-MCP/core/agent/rag"
	"github.com/InboxGenie/IG-Gmail-MCP/core/port/out"
	"github.com/InboxGenie/IG-Gmail-MCP/core/service/search"
	"github.com/InboxGenie/IG-Gmail-MCP/infra/database"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/cache"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/logger"
	"github.com/InboxGenie/IG-Gmail-MCP/pkg/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	latencyWindow         = 1000
	embeddingCacheEntries = 10000
	embeddingCachePrefix  = "emb"
)

type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	SQLDB   *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	// Backends
	MessageStore out.MessageStore
	Accounts     out.AccountRepository
	VectorStore  out.VectorStore

	// Agent
	LLMClient  *llm.Client
	Classifier *llm.ReasoningClassifier
	Embedder   *rag.CachedEmbedder
	Retriever  *rag.Retriever

	// Services
	SearchService *search.Service
	Latency       *metrics.LatencyRegistry
}

func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg, Latency: metrics.NewLatencyRegistry(latencyWindow)}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// Postgres backs the message store, the account links and the pgvector index.
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		deps.DB = db
		cleanups = append(cleanups, db.Close)

		sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		deps.SQLDB = sqlDB
		cleanups = append(cleanups, func() { _ = sqlDB.Close() })
		logger.Info("Postgres connected")
	}

	// Redis only holds the shared embedding cache; run without it if unreachable.
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, embedding cache stays in-process")
		} else {
			deps.Redis = rdb
			cleanups = append(cleanups, func() { _ = rdb.Close() })
		}
	}

	if err := deps.initMessageStore(ctx, &cleanups); err != nil {
		return fail(err)
	}

	if deps.SQLDB != nil {
		deps.Accounts = persistence.NewAccountAdapter(deps.SQLDB)
	} else {
		deps.Accounts = memory.NewAccountRepository()
	}

	deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Timeout:        cfg.LLMTimeout(),
		MaxRetries:     cfg.LLMMaxRetries,
	})
	deps.Classifier = llm.NewReasoningClassifier(deps.LLMClient,
		llm.WithPrompt(cfg.ReasoningPrompt),
		llm.WithLocation(cfg.Location()),
	)

	var l2 rag.RemoteCache
	if deps.Redis != nil {
		l2 = cache.NewRedisCache(deps.Redis, embeddingCachePrefix)
	}
	l1 := rag.NewEmbeddingCache(&rag.EmbeddingCacheConfig{MaxSize: embeddingCacheEntries, TTL: cfg.EmbeddingCacheTTL()})
	deps.Embedder = rag.NewCachedEmbedder(rag.NewEmbedder(deps.LLMClient, 0), cfg.EmbeddingModel, l1, l2, cfg.EmbeddingCacheTTL())

	if err := deps.initVectorStore(ctx); err != nil {
		return fail(err)
	}
	deps.Retriever = rag.NewRetriever(deps.Embedder, deps.VectorStore)

	deps.SearchService = search.NewService(
		deps.Classifier,
		deps.MessageStore,
		deps.Retriever,
		deps.Accounts,
		search.Config{
			Namespace:         cfg.VectorNamespace,
			SemanticTopK:      cfg.SemanticTopK,
			MaxCandidates:     cfg.MaxCandidates,
			FanOutConcurrency: cfg.FanOutConcurrency,
			Location:          cfg.Location(),
		},
		deps.Latency,
	)

	logger.WithFields(map[string]any{
		"message_store": cfg.MessageStore,
		"vector_store":  fmt.Sprintf("%T", deps.VectorStore),
		"redis":         deps.Redis != nil,
	}).Info("Dependencies initialized")

	return deps, cleanup, nil
}

func (d *Dependencies) initMessageStore(ctx context.Context, cleanups *[]func()) error {
	cfg := d.Config
	switch cfg.MessageStore {
	case config.StorePostgres:
		if d.DB == nil {
			return fmt.Errorf("message store %q requires DATABASE_URL", cfg.MessageStore)
		}
		d.MessageStore = persistence.NewMessageAdapter(d.DB)

	case config.StoreMongoDB:
		client, err := mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			return err
		}
		d.MongoDB = client
		*cleanups = append(*cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})

		adapter := mongodb.NewMessageAdapter(client.Database(cfg.MongoDBName))
		if err := mongodb.EnsureIndexes(ctx, adapter.Collection()); err != nil {
			return fmt.Errorf("ensure message indexes: %w", err)
		}
		d.MessageStore = adapter

	case config.StoreMemory:
		store := memory.NewMessageStore()
		if cfg.MemorySeedFile != "" {
			n, err := store.LoadFile(cfg.MemorySeedFile)
			if err != nil {
				return err
			}
			logger.Info("Loaded %d seed messages from %s", n, cfg.MemorySeedFile)
		}
		d.MessageStore = store

	default:
		return fmt.Errorf("unknown message store %q", cfg.MessageStore)
	}
	return nil
}

// initVectorStore uses pgvector when Postgres is configured. Otherwise the
// in-memory index is built from whatever the memory store was seeded with.
func (d *Dependencies) initVectorStore(ctx context.Context) error {
	if d.DB != nil {
		d.VectorStore = rag.NewVectorStore(d.DB)
		return nil
	}

	vectors := memory.NewVectorStore()
	d.VectorStore = vectors

	store, ok := d.MessageStore.(*memory.MessageStore)
	if !ok {
		logger.Warn("No DATABASE_URL: semantic search runs against an empty in-memory index")
		return nil
	}
	seeded := store.All()
	if len(seeded) == 0 {
		return nil
	}
	if err := vectors.Index(ctx, d.Config.VectorNamespace, d.Embedder, seeded...); err != nil {
		return fmt.Errorf("index seed messages: %w", err)
	}
	logger.Info("Indexed %d seed messages in memory", len(seeded))
	return nil
}
