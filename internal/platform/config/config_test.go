package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Catalog.Backend)
	assert.Equal(t, "openai", cfg.Embedding.Backend)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "postgres", cfg.VectorStore.Backend)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, 5, cfg.Recommend.TopK)
	assert.True(t, cfg.Recommend.AnswerLLM)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EMBEDDING_BACKEND", "ollama")
	t.Setenv("OPENAI_EMBEDDING_DIMENSION", "1024")
	t.Setenv("EMBEDDING_TIMEOUT", "3s")
	t.Setenv("VECTOR_STORE_BACKEND", "qdrant")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://cureat.kr, https://admin.cureat.kr")
	t.Setenv("RECOMMEND_ANSWER_LLM", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Embedding.Backend)
	assert.Equal(t, 1024, cfg.Embedding.Dimension)
	assert.Equal(t, 3*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "qdrant", cfg.VectorStore.Backend)
	assert.Equal(t, []string{"https://cureat.kr", "https://admin.cureat.kr"}, cfg.HTTP.CORSAllowedOrigins)
	assert.False(t, cfg.Recommend.AnswerLLM)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RECOMMEND_TOP_K=9\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("RECOMMEND_TOP_K") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Recommend.TopK)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown embedding backend", key: "EMBEDDING_BACKEND", val: "bert"},
		{name: "unknown vector store", key: "VECTOR_STORE_BACKEND", val: "faiss"},
		{name: "unknown catalog backend", key: "CATALOG_BACKEND", val: "mysql"},
		{name: "zero dimension", key: "EMBEDDING_DIMENSION", val: "0"},
		{name: "zero top k", key: "RECOMMEND_TOP_K", val: "0"},
		{name: "port out of range", key: "HTTP_PORT", val: "70000"},
		{name: "bad log level", key: "LOG_LEVEL", val: "verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load("")
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
