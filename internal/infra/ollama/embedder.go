// Package ollama はローカルの Ollama サーバーを埋め込みバックエンドとして使う
package ollama

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cureat/cureat/internal/core/embedding"
)

const (
	// DefaultBaseURL は Ollama の既定エンドポイント
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel は多言語対応の埋め込みモデル
	DefaultModel = "bge-m3"
)

// ErrModelNotConfigured はモデル名が空の場合のエラー
var ErrModelNotConfigured = errors.New("ollama embedding model not configured")

// Embedder は Ollama の /api/embeddings を呼ぶ embedding.Backend 実装
type Embedder struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewEmbedder は Embedder を作成する。dimension はモデルの出力次元。
func NewEmbedder(baseURL, model string, dimension int, client *http.Client) (*Embedder, error) {
	if model == "" {
		return nil, ErrModelNotConfigured
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("ollama: invalid dimension %d", dimension)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Embedder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		dimension: dimension,
		client:    client,
	}, nil
}

// NewBackendFactory は embedding.Provider 用のファクトリを返す。
// 初期化時に一度埋め込みを試し、サーバーとモデルが使えることを確認する。
func NewBackendFactory(baseURL, model string, dimension int) embedding.BackendFactory {
	return func(ctx context.Context) (embedding.Backend, error) {
		e, err := NewEmbedder(baseURL, model, dimension, nil)
		if err != nil {
			return nil, err
		}
		probe, err := e.Encode(ctx, "확인")
		if err != nil {
			return nil, fmt.Errorf("ollama: probe failed: %w", err)
		}
		if len(probe) != dimension {
			return nil, fmt.Errorf("ollama: model %s returned %d dimensions, expected %d", model, len(probe), dimension)
		}
		return e, nil
	}
}

// Encode はテキストをベクトルに変換する
func (e *Embedder) Encode(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollama embed encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed: status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding")
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

var _ embedding.Backend = (*Embedder)(nil)
