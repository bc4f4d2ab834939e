package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// カタログの保存先
	Catalog CatalogConfig

	// OpenAI設定（Embeddings + 推薦文生成）
	OpenAI OpenAIConfig

	// 埋め込みプロバイダ設定
	Embedding EmbeddingConfig

	// Ollama設定
	Ollama OllamaConfig

	// ベクトルストア設定
	VectorStore VectorStoreConfig

	// 再インデックス通知
	NATS NATSConfig

	// HTTPサーバー設定
	HTTP HTTPConfig

	// 推薦設定
	Recommend RecommendConfig

	// ログ設定
	Log LogConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// CatalogConfig はカタログの保存先設定
type CatalogConfig struct {
	Backend string // "postgres" or "memory"
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	LLMModel       string
}

// EmbeddingConfig は埋め込みプロバイダの設定
type EmbeddingConfig struct {
	Backend            string // "openai", "ollama" or "none"
	Dimension          int
	Timeout            time.Duration
	RateLimit          float64
	RateBurst          int
	CacheSize          int
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
}

// OllamaConfig はローカル埋め込みサーバーの設定
type OllamaConfig struct {
	URL   string
	Model string
}

// VectorStoreConfig はベクトルストアの設定
type VectorStoreConfig struct {
	Backend          string // "postgres", "memory" or "qdrant"
	QdrantAddr       string
	QdrantCollection string
}

// NATSConfig は要約更新通知の設定。URL が空ならプロセス内で処理する。
type NATSConfig struct {
	URL     string
	Subject string
	Queue   string
}

// HTTPConfig はHTTPサーバーの設定
type HTTPConfig struct {
	Port               int
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	ShutdownTimeout    time.Duration
}

// RecommendConfig は推薦の既定値
type RecommendConfig struct {
	TopK       int
	Oversample int
	AnswerLLM  bool
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "cureat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "cureat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		},
		Catalog: CatalogConfig{
			Backend: getEnv("CATALOG_BACKEND", "postgres"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_BASE_URL", ""),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			LLMModel:       getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		},
		Embedding: EmbeddingConfig{
			Backend:            getEnv("EMBEDDING_BACKEND", "openai"),
			Dimension:          getEnvAsInt("EMBEDDING_DIMENSION", getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536)),
			Timeout:            getEnvAsDuration("EMBEDDING_TIMEOUT", 10*time.Second),
			RateLimit:          getEnvAsFloat("EMBEDDING_RATE_LIMIT", 0),
			RateBurst:          getEnvAsInt("EMBEDDING_RATE_BURST", 1),
			CacheSize:          getEnvAsInt("EMBEDDING_CACHE_SIZE", 1024),
			BreakerFailures:    getEnvAsInt("EMBEDDING_BREAKER_FAILURES", 5),
			BreakerOpenTimeout: getEnvAsDuration("EMBEDDING_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Ollama: OllamaConfig{
			URL:   getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model: getEnv("OLLAMA_MODEL", "bge-m3"),
		},
		VectorStore: VectorStoreConfig{
			Backend:          getEnv("VECTOR_STORE_BACKEND", "postgres"),
			QdrantAddr:       getEnv("QDRANT_ADDR", "localhost:6334"),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "restaurants"),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "cureat.restaurant.summary_changed"),
			Queue:   getEnv("NATS_QUEUE", "cureat-indexer"),
		},
		HTTP: HTTPConfig{
			Port:               getEnvAsInt("HTTP_PORT", 8080),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RateLimitRequests:  getEnvAsInt("RATE_LIMIT_REQUESTS", 60),
			RateLimitWindow:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
			ShutdownTimeout:    getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Recommend: RecommendConfig{
			TopK:       getEnvAsInt("RECOMMEND_TOP_K", 5),
			Oversample: getEnvAsInt("RECOMMEND_OVERSAMPLE", 4),
			AnswerLLM:  getEnvAsBool("RECOMMEND_ANSWER_LLM", true),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate は取りうる値の範囲を検証します
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.Catalog.Backend, "postgres", "memory") {
		errs = append(errs, fmt.Errorf("CATALOG_BACKEND must be postgres or memory, got %q", c.Catalog.Backend))
	}
	if !oneOf(c.Embedding.Backend, "openai", "ollama", "none") {
		errs = append(errs, fmt.Errorf("EMBEDDING_BACKEND must be openai, ollama or none, got %q", c.Embedding.Backend))
	}
	if !oneOf(c.VectorStore.Backend, "postgres", "memory", "qdrant") {
		errs = append(errs, fmt.Errorf("VECTOR_STORE_BACKEND must be postgres, memory or qdrant, got %q", c.VectorStore.Backend))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_TIMEOUT must be positive"))
	}
	if c.Embedding.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_RATE_LIMIT must not be negative"))
	}
	if c.Embedding.BreakerFailures <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_BREAKER_FAILURES must be positive"))
	}
	if c.Recommend.TopK <= 0 {
		errs = append(errs, fmt.Errorf("RECOMMEND_TOP_K must be positive, got %d", c.Recommend.TopK))
	}
	if c.Recommend.Oversample <= 0 {
		errs = append(errs, fmt.Errorf("RECOMMEND_OVERSAMPLE must be positive, got %d", c.Recommend.Oversample))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT out of range: %d", c.HTTP.Port))
	}
	if c.HTTP.RateLimitRequests < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel は LOG_LEVEL を slog.Level に変換します
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", l.Level, err)
	}
	return level, nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: "10s"）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice はカンマ区切りの環境変数を取得します
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
