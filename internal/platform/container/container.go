package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3/option"

	"github.com/cureat/cureat/internal/core/catalog"
	"github.com/cureat/cureat/internal/core/embedding"
	"github.com/cureat/cureat/internal/core/indexing"
	"github.com/cureat/cureat/internal/core/recommend"
	"github.com/cureat/cureat/internal/core/vectorstore"
	"github.com/cureat/cureat/internal/infra/natsbus"
	"github.com/cureat/cureat/internal/infra/ollama"
	"github.com/cureat/cureat/internal/infra/openai"
	"github.com/cureat/cureat/internal/infra/postgres"
	"github.com/cureat/cureat/internal/infra/qdrant"
	"github.com/cureat/cureat/internal/platform/config"
	"github.com/cureat/cureat/internal/platform/metrics"
)

// ErrEmbeddingDisabled は EMBEDDING_BACKEND=none のとき埋め込みバックエンドが返すエラー
var ErrEmbeddingDisabled = errors.New("embedding backend disabled")

// ServiceContainer は推薦パイプラインの依存関係を保持する。
type ServiceContainer struct {
	Catalog     *catalog.CatalogService
	Embeddings  *embedding.Provider
	Store       vectorstore.Store
	Indexer     *indexing.Indexer
	Recommender *recommend.RecommendService
	Metrics     *metrics.Metrics

	cfg      *config.Config
	logger   *slog.Logger
	database *postgres.DB
	nats     *nats.Conn
	closers  []func()
}

type containerOptions struct {
	logger         *slog.Logger
	backendFactory embedding.BackendFactory
	llmClient      recommend.LLMClient
	metrics        *metrics.Metrics
	database       *postgres.DB
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerBackendFactory は埋め込みバックエンドの生成を差し替える
func WithContainerBackendFactory(factory embedding.BackendFactory) ContainerOption {
	return func(opts *containerOptions) {
		opts.backendFactory = factory
	}
}

// WithContainerLLMClient は LLM クライアントを差し替える
func WithContainerLLMClient(client recommend.LLMClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.llmClient = client
	}
}

// WithContainerMetrics はメトリクスを差し替える
func WithContainerMetrics(m *metrics.Metrics) ContainerOption {
	return func(opts *containerOptions) {
		opts.metrics = m
	}
}

// WithContainerDatabase は既存のデータベース接続を使う
func WithContainerDatabase(db *postgres.DB) ContainerOption {
	return func(opts *containerOptions) {
		opts.database = db
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(ctx context.Context, cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.metrics == nil {
		options.metrics = metrics.New()
	}

	c := &ServiceContainer{
		Metrics:  options.metrics,
		cfg:      cfg,
		logger:   options.logger,
		database: options.database,
	}

	if err := c.build(ctx, options); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *ServiceContainer) build(ctx context.Context, options containerOptions) error {
	cfg := c.cfg

	// Database (PostgreSQL)
	if c.database == nil && (cfg.Catalog.Backend == "postgres" || cfg.VectorStore.Backend == "postgres") {
		db, err := postgres.New(ctx, postgres.ConnectionParams{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: int32(cfg.Database.MaxConns),
		})
		if err != nil {
			return fmt.Errorf("データベース初期化に失敗しました: %w", err)
		}
		c.database = db
		c.closers = append(c.closers, db.Close)

		if err := postgres.Migrate(ctx, db.Pool, cfg.Embedding.Dimension); err != nil {
			return fmt.Errorf("マイグレーションに失敗しました: %w", err)
		}
	}

	// Catalog
	var repo catalog.Repository
	switch cfg.Catalog.Backend {
	case "memory":
		repo = catalog.NewMemoryRepository()
	default:
		repo = postgres.NewTransactionalCatalog(c.database)
	}
	c.Catalog = catalog.NewCatalogService(repo, catalog.WithCatalogLogger(c.logger))

	// Embedding Provider
	factory := options.backendFactory
	if factory == nil {
		factory = backendFactory(cfg)
	}
	c.Embeddings = embedding.NewProvider(ctx, factory,
		embedding.WithDimension(cfg.Embedding.Dimension),
		embedding.WithTimeout(cfg.Embedding.Timeout),
		embedding.WithCache(cfg.Embedding.CacheSize),
		embedding.WithRateLimit(cfg.Embedding.RateLimit, cfg.Embedding.RateBurst),
		embedding.WithBreaker(embedding.BreakerSettings{
			FailureThreshold: uint32(cfg.Embedding.BreakerFailures),
			OpenTimeout:      cfg.Embedding.BreakerOpenTimeout,
		}),
		embedding.WithRecorder(c.Metrics),
		embedding.WithProviderLogger(c.logger),
	)
	if err := c.Embeddings.InitError(); err != nil {
		c.logger.Warn("embedding backend unavailable, recommendations will be degraded",
			"backend", cfg.Embedding.Backend,
			"error", err,
		)
	}

	// Vector Store
	store, err := c.vectorStore(ctx)
	if err != nil {
		return err
	}
	c.Store = store

	// Indexer
	c.Indexer = indexing.NewIndexer(c.Catalog, c.Embeddings, c.Store, indexing.WithIndexerLogger(c.logger))

	// 要約更新の通知先
	if cfg.NATS.URL != "" {
		conn, err := natsbus.Connect(cfg.NATS.URL, "cureat", c.logger)
		if err != nil {
			return fmt.Errorf("NATS 接続に失敗しました: %w", err)
		}
		c.nats = conn
		c.closers = append(c.closers, conn.Close)
		c.Catalog.SetChangeNotifier(natsbus.NewPublisher(conn, cfg.NATS.Subject))
	} else {
		c.Catalog.SetChangeNotifier(c.Indexer)
	}

	// LLMClient (OpenAI)
	llm := options.llmClient
	if llm == nil && cfg.Recommend.AnswerLLM && cfg.OpenAI.APIKey != "" {
		var requestOpts []option.RequestOption
		if cfg.OpenAI.BaseURL != "" {
			requestOpts = append(requestOpts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		client, err := openai.NewClient(cfg.OpenAI.APIKey, requestOpts, openai.WithChatModel(cfg.OpenAI.LLMModel))
		if err != nil {
			return fmt.Errorf("OpenAI LLMクライアント初期化に失敗しました: %w", err)
		}
		llm = client
	}

	recommendOpts := []recommend.RecommendServiceOption{
		recommend.WithRecommendLogger(c.logger),
		recommend.WithSearchRecorder(c.Catalog),
		recommend.WithUserSource(c.Catalog),
		recommend.WithOversample(cfg.Recommend.Oversample),
		recommend.WithRecommendRecorder(c.Metrics),
	}
	if llm != nil {
		recommendOpts = append(recommendOpts, recommend.WithLLMClient(llm))
	}
	c.Recommender = recommend.NewRecommendService(c.Embeddings, c.Store, c.Catalog, recommendOpts...)

	// メモリストアは起動ごとに空なので、カタログから作り直す
	if cfg.VectorStore.Backend == "memory" && c.Embeddings.Status() == embedding.StatusReady {
		report, err := c.Indexer.ReindexAll(ctx)
		if err != nil {
			c.logger.Warn("initial reindex failed", "error", err)
		} else {
			c.logger.Info("initial reindex completed",
				"indexed", report.Indexed,
				"skipped", report.Skipped,
				"failed", report.Failed,
			)
		}
	}

	return nil
}

func backendFactory(cfg *config.Config) embedding.BackendFactory {
	switch cfg.Embedding.Backend {
	case "ollama":
		return ollama.NewBackendFactory(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Embedding.Dimension)
	case "none":
		return func(context.Context) (embedding.Backend, error) {
			return nil, ErrEmbeddingDisabled
		}
	default:
		opts := []openai.EmbedderOption{
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
			openai.WithEmbeddingDimension(cfg.Embedding.Dimension),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithEmbeddingBaseURL(cfg.OpenAI.BaseURL))
		}
		return openai.NewBackendFactory(cfg.OpenAI.APIKey, opts...)
	}
}

func (c *ServiceContainer) vectorStore(ctx context.Context) (vectorstore.Store, error) {
	dim := c.cfg.Embedding.Dimension
	switch c.cfg.VectorStore.Backend {
	case "memory":
		return vectorstore.NewMemoryStore(dim)
	case "qdrant":
		store, err := qdrant.New(ctx, c.cfg.VectorStore.QdrantAddr, c.cfg.VectorStore.QdrantCollection, dim)
		if err != nil {
			return nil, fmt.Errorf("Qdrant 初期化に失敗しました: %w", err)
		}
		c.closers = append(c.closers, func() { _ = store.Close() })
		return store, nil
	default:
		store, err := postgres.NewVectorStore(ctx, c.database.Pool, dim)
		if err != nil {
			return nil, fmt.Errorf("ベクトルストア初期化に失敗しました: %w", err)
		}
		return store, nil
	}
}

// StartIndexSubscriber は NATS 経由の要約更新通知を受けて再インデックスする。
// NATS を使わない構成では通知は同一プロセスで処理済みなので何もしない。
func (c *ServiceContainer) StartIndexSubscriber(ctx context.Context) error {
	if c.nats == nil {
		return nil
	}
	sub, err := natsbus.Subscribe(c.nats, c.cfg.NATS.Subject, c.cfg.NATS.Queue, c.Indexer.HandleSummaryChange, c.logger)
	if err != nil {
		return fmt.Errorf("要約更新の購読に失敗しました: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	return nil
}

// Close は内部リソースを解放する。後から開いたものから閉じる。
func (c *ServiceContainer) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Database はデータベースを返す。メモリ構成では nil。
func (c *ServiceContainer) Database() *postgres.DB {
	if c == nil {
		return nil
	}
	return c.database
}
