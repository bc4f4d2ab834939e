package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/cureat/cureat/internal/core/recommend"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout はAPI呼び出しのデフォルトタイムアウト
	DefaultTimeout = 60 * time.Second

	// DefaultTemperature は推薦文生成の温度
	DefaultTemperature = 0.3

	// MaxRetries はレート制限エラー時の最大リトライ回数
	MaxRetries = 3

	// BaseBackoff はExponential Backoffの基底時間
	BaseBackoff = 2 * time.Second

	// MaxBackoff はExponential Backoffの最大待機時間
	MaxBackoff = 32 * time.Second
)

// ErrMaxRetriesExceeded は最大リトライ回数を超過した場合のエラー
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Client は OpenAI API を使用した推薦文生成クライアント
type Client struct {
	client      openai.Client
	model       string
	timeout     time.Duration
	temperature float64
	maxTokens   int
	baseBackoff time.Duration
}

// ClientOption は Client のオプション設定
type ClientOption func(*Client)

// WithChatModel はモデル名を上書きする
func WithChatModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithClientTimeout はAPIコールのタイムアウトを設定する
func WithClientTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMaxTokens は生成トークン数の上限を設定する
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithBackoff はリトライ間隔の基底時間を設定する
func WithBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.baseBackoff = d
	}
}

// NewClient は新しい Client を作成する
func NewClient(apiKey string, requestOpts []option.RequestOption, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, requestOpts...)

	c := &Client{
		client:      openai.NewClient(reqOpts...),
		model:       DefaultModel,
		timeout:     DefaultTimeout,
		temperature: DefaultTemperature,
		baseBackoff: BaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// GenerateCompletion は OpenAI API を使用してテキストを生成する
func (c *Client) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoffDuration := time.Duration(math.Pow(2, float64(attempt-1))) * c.baseBackoff
			if backoffDuration > MaxBackoff {
				backoffDuration = MaxBackoff
			}

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoffDuration):
			}
		}

		params := openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(c.temperature),
		}
		if c.maxTokens > 0 {
			params.MaxTokens = openai.Int(int64(c.maxTokens))
		}

		completion, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			lastErr = err

			if isRateLimitError(err) {
				continue
			}

			return "", fmt.Errorf("OpenAI API call failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion choices returned")
		}

		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}

	return false
}

// インターフェース実装の確認
var _ recommend.LLMClient = (*Client)(nil)
