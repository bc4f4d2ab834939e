package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/cureat/cureat/internal/core/embedding"
)

const (
	// DefaultEmbeddingModel はモデル未指定時のデフォルトモデル
	DefaultEmbeddingModel = "text-embedding-3-small"
	// DefaultEmbeddingDimension はOpenAI推奨のデフォルト次元
	DefaultEmbeddingDimension = 1536
	// MaxInputTokens は埋め込みモデルが受け付ける最大トークン数
	MaxInputTokens = 8191
)

// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
var ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")

// Embedder は OpenAI API を使用してテキストをベクトルに変換する embedding.Backend 実装
type Embedder struct {
	client    openai.Client
	model     string
	dimension int
	maxTokens int
	encoding  *tiktoken.Tiktoken
}

type embedderOptions struct {
	model     string
	dimension int
	maxTokens int
	baseURL   string
}

// EmbedderOption は Embedder のオプション設定
type EmbedderOption func(*embedderOptions)

// WithEmbeddingModel はモデル名を上書きする
func WithEmbeddingModel(model string) EmbedderOption {
	return func(o *embedderOptions) {
		o.model = model
	}
}

// WithEmbeddingDimension はベクトル次元を上書きする
func WithEmbeddingDimension(dimension int) EmbedderOption {
	return func(o *embedderOptions) {
		o.dimension = dimension
	}
}

// WithMaxInputTokens は入力を切り詰めるトークン数を設定する
func WithMaxInputTokens(n int) EmbedderOption {
	return func(o *embedderOptions) {
		o.maxTokens = n
	}
}

// WithEmbeddingBaseURL は互換APIのエンドポイントを指定する
func WithEmbeddingBaseURL(url string) EmbedderOption {
	return func(o *embedderOptions) {
		o.baseURL = url
	}
}

// NewEmbedder は新しい Embedder を作成する
func NewEmbedder(apiKey string, opts ...EmbedderOption) (*Embedder, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	options := embedderOptions{
		model:     DefaultEmbeddingModel,
		dimension: DefaultEmbeddingDimension,
		maxTokens: MaxInputTokens,
	}
	for _, opt := range opts {
		opt(&options)
	}

	// リトライはプロバイダのサーキットブレーカーに任せる
	requestOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if options.baseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(options.baseURL))
	}

	// エンコーディングが読めない環境では切り詰めを行わない
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}

	return &Embedder{
		client:    openai.NewClient(requestOpts...),
		model:     options.model,
		dimension: options.dimension,
		maxTokens: options.maxTokens,
		encoding:  enc,
	}, nil
}

// NewBackendFactory は embedding.Provider 用のファクトリを返す
func NewBackendFactory(apiKey string, opts ...EmbedderOption) embedding.BackendFactory {
	return func(ctx context.Context) (embedding.Backend, error) {
		return NewEmbedder(apiKey, opts...)
	}
}

// Encode は単一テキストの Embedding を生成する
func (e *Embedder) Encode(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(e.truncate(text)),
		},
	}
	if e.dimension > 0 {
		params.Dimensions = openai.Int(int64(e.dimension))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings generated")
	}

	data := resp.Data[0].Embedding
	vector := make([]float32, len(data))
	for i, v := range data {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (e *Embedder) truncate(text string) string {
	if e.encoding == nil || e.maxTokens <= 0 {
		return text
	}
	tokens := e.encoding.Encode(text, nil, nil)
	if len(tokens) <= e.maxTokens {
		return text
	}
	return e.encoding.Decode(tokens[:e.maxTokens])
}

// ModelName はモデル名を返す
func (e *Embedder) ModelName() string {
	return e.model
}

// Dimension はベクトル次元数を返す
func (e *Embedder) Dimension() int {
	return e.dimension
}

// インターフェース実装の確認
var _ embedding.Backend = (*Embedder)(nil)
