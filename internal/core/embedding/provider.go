// Package embedding はテキストを固定次元のベクトルに変換するプロバイダを提供する。
// バックエンドが使えない場合は ErrUnavailable を返し、呼び出し側は縮退動作に切り替える。
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ErrUnavailable はベクトルを生成できなかったことを表す
var ErrUnavailable = errors.New("embedding unavailable")

const (
	DefaultTimeout          = 10 * time.Second
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
)

// Backend は埋め込みモデルへの接続
type Backend interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelName() string
}

// BackendFactory はバックエンドを初期化する。Provider 生成時に一度だけ呼ばれる。
type BackendFactory func(ctx context.Context) (Backend, error)

// Status はプロバイダの状態
type Status string

const (
	StatusReady    Status = "ready"
	StatusDegraded Status = "degraded"
)

// Outcome は Embed 呼び出しの結果区分（メトリクス用）
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeCacheHit    Outcome = "cache_hit"
	OutcomeDegraded    Outcome = "degraded"
	OutcomeTimeout     Outcome = "timeout"
	OutcomeBreakerOpen Outcome = "breaker_open"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeCanceled    Outcome = "canceled"
	OutcomeError       Outcome = "error"
)

// Recorder は Embed の結果とレイテンシを記録する
type Recorder interface {
	ObserveEmbedding(outcome Outcome, latency time.Duration)
}

// BreakerSettings はサーキットブレーカーの設定
type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// Provider は Backend を包み、タイムアウト・サーキットブレーカー・レート制限・キャッシュを適用する
type Provider struct {
	backend   Backend
	initErr   error
	dimension int

	timeout  time.Duration
	breaker  *gobreaker.CircuitBreaker[[]float32]
	limiter  *rate.Limiter
	cache    *lru.Cache[string, []float32]
	group    singleflight.Group
	recorder Recorder
	logger   *slog.Logger
}

type providerOptions struct {
	timeout   time.Duration
	dimension int
	cacheSize int
	rps       float64
	burst     int
	breaker   BreakerSettings
	recorder  Recorder
	logger    *slog.Logger
}

// ProviderOption は Provider のオプション設定
type ProviderOption func(*providerOptions)

// WithTimeout はバックエンド呼び出しのタイムアウトを設定する
func WithTimeout(d time.Duration) ProviderOption {
	return func(o *providerOptions) {
		o.timeout = d
	}
}

// WithDimension は期待する次元を設定する。バックエンドの次元が異なる場合は縮退モードになる。
func WithDimension(dimension int) ProviderOption {
	return func(o *providerOptions) {
		o.dimension = dimension
	}
}

// WithCache は読み取りキャッシュを有効にする
func WithCache(size int) ProviderOption {
	return func(o *providerOptions) {
		o.cacheSize = size
	}
}

// WithRateLimit はバックエンド呼び出しの毎秒上限を設定する
func WithRateLimit(rps float64, burst int) ProviderOption {
	return func(o *providerOptions) {
		o.rps = rps
		o.burst = burst
	}
}

// WithBreaker はサーキットブレーカーの閾値を設定する
func WithBreaker(settings BreakerSettings) ProviderOption {
	return func(o *providerOptions) {
		o.breaker = settings
	}
}

// WithRecorder はメトリクス記録先を設定する
func WithRecorder(recorder Recorder) ProviderOption {
	return func(o *providerOptions) {
		o.recorder = recorder
	}
}

// WithProviderLogger はロガーを設定する
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(o *providerOptions) {
		o.logger = logger
	}
}

// NewProvider はバックエンドを初期化して Provider を作成する。
// 初期化に失敗しても nil は返さず、縮退モードの Provider を返す。
func NewProvider(ctx context.Context, factory BackendFactory, opts ...ProviderOption) *Provider {
	options := providerOptions{
		timeout: DefaultTimeout,
		breaker: BreakerSettings{
			FailureThreshold: DefaultFailureThreshold,
			OpenTimeout:      DefaultOpenTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	p := &Provider{
		timeout:  options.timeout,
		recorder: options.recorder,
		logger:   options.logger,
	}

	backend, err := initBackend(ctx, factory, options.dimension)
	if err != nil {
		p.initErr = err
		p.dimension = options.dimension
		p.logger.Warn("embedding backend unavailable, running in degraded mode", "error", err)
		return p
	}
	p.backend = backend
	p.dimension = backend.Dimension()

	threshold := options.breaker.FailureThreshold
	if threshold == 0 {
		threshold = DefaultFailureThreshold
	}
	p.breaker = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:    "embedding:" + backend.ModelName(),
		Timeout: options.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 呼び出し側のキャンセルはバックエンドの故障として数えない
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("embedding circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	if options.rps > 0 {
		burst := options.burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(options.rps), burst)
	}

	if options.cacheSize > 0 {
		cache, err := lru.New[string, []float32](options.cacheSize)
		if err != nil {
			p.logger.Warn("embedding cache disabled", "error", err)
		} else {
			p.cache = cache
		}
	}

	p.logger.Info("embedding provider ready",
		"model", backend.ModelName(),
		"dimension", p.dimension,
	)
	return p
}

func initBackend(ctx context.Context, factory BackendFactory, expected int) (Backend, error) {
	if factory == nil {
		return nil, errors.New("no embedding backend configured")
	}
	backend, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding backend: %w", err)
	}
	if backend == nil {
		return nil, errors.New("embedding backend factory returned nil")
	}
	if expected > 0 && backend.Dimension() != expected {
		return nil, fmt.Errorf("embedding backend dimension %d does not match configured %d", backend.Dimension(), expected)
	}
	return backend, nil
}

// Status は現在の状態を返す
func (p *Provider) Status() Status {
	if p.backend == nil {
		return StatusDegraded
	}
	return StatusReady
}

// InitError は縮退モードに入った原因を返す。正常時は nil。
func (p *Provider) InitError() error {
	return p.initErr
}

// Dimension は生成されるベクトルの次元を返す
func (p *Provider) Dimension() int {
	return p.dimension
}

// ModelName はバックエンドのモデル名を返す。縮退モードでは空文字。
func (p *Provider) ModelName() string {
	if p.backend == nil {
		return ""
	}
	return p.backend.ModelName()
}

// Embed はテキストをベクトルに変換する。
// 返すエラーは常に ErrUnavailable をラップしたもの。
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()

	if p.backend == nil {
		p.observe(OutcomeDegraded, start)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, p.initErr)
	}

	if p.cache != nil {
		if v, ok := p.cache.Get(text); ok {
			p.observe(OutcomeCacheHit, start)
			return slices.Clone(v), nil
		}
		// 共有呼び出しは最初の呼び出し元のキャンセルに巻き込まれないよう切り離し、
		// タイムアウトは encode が付ける
		shared := context.WithoutCancel(ctx)
		ch := p.group.DoChan(text, func() (any, error) {
			vector, err := p.encode(shared, text)
			if err != nil {
				return nil, err
			}
			p.cache.Add(text, vector)
			return vector, nil
		})
		select {
		case <-ctx.Done():
			p.observe(classify(ctx.Err()), start)
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				p.observe(classify(res.Err), start)
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, res.Err)
			}
			p.observe(OutcomeOK, start)
			return slices.Clone(res.Val.([]float32)), nil
		}
	}

	vector, err := p.encode(ctx, text)
	if err != nil {
		p.observe(classify(err), start)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	p.observe(OutcomeOK, start)
	return vector, nil
}

// Invalidate はキャッシュ済みのベクトルを破棄する。テキストの内容が変わったときに呼ぶ。
func (p *Provider) Invalidate(text string) {
	if p.cache != nil {
		p.cache.Remove(text)
	}
}

var errRateLimited = errors.New("rate limit wait aborted")

func (p *Provider) encode(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", errRateLimited, err)
		}
	}

	vector, err := p.breaker.Execute(func() ([]float32, error) {
		v, err := p.backend.Encode(ctx, text)
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) && !errors.Is(err, context.Canceled) {
				err = fmt.Errorf("%w: %v", context.Canceled, err)
			}
			return nil, err
		}
		if len(v) != p.dimension {
			return nil, fmt.Errorf("backend returned %d dimensions, expected %d", len(v), p.dimension)
		}
		return v, nil
	})
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding timed out after %s: %w", p.timeout, context.DeadlineExceeded)
		}
		return nil, err
	}
	return vector, nil
}

func classify(err error) Outcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return OutcomeBreakerOpen
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, errRateLimited):
		return OutcomeRateLimited
	default:
		return OutcomeError
	}
}

func (p *Provider) observe(outcome Outcome, start time.Time) {
	if p.recorder != nil {
		p.recorder.ObserveEmbedding(outcome, time.Since(start))
	}
}
