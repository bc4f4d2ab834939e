package embedding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	dimension int
	vector    []float32
	err       error
	block     bool
	calls     atomic.Int32
}

func (b *stubBackend) Encode(ctx context.Context, text string) ([]float32, error) {
	b.calls.Add(1)
	if b.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.vector, nil
}

func (b *stubBackend) Dimension() int    { return b.dimension }
func (b *stubBackend) ModelName() string { return "stub-model" }

type stubRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *stubRecorder) ObserveEmbedding(outcome Outcome, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
}

func factoryOf(b Backend) BackendFactory {
	return func(ctx context.Context) (Backend, error) { return b, nil }
}

func TestProvider_Embed(t *testing.T) {
	backend := &stubBackend{dimension: 3, vector: []float32{1, 0, 0}}
	p := NewProvider(context.Background(), factoryOf(backend), WithProviderLogger(discardLogger()))

	assert.Equal(t, StatusReady, p.Status())
	assert.NoError(t, p.InitError())
	assert.Equal(t, 3, p.Dimension())
	assert.Equal(t, "stub-model", p.ModelName())

	got, err := p.Embed(context.Background(), "맛있다 추천")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got)
}

func TestProvider_InitFailureEntersDegradedMode(t *testing.T) {
	recorder := &stubRecorder{}
	p := NewProvider(context.Background(), func(ctx context.Context) (Backend, error) {
		return nil, errors.New("model unreachable")
	}, WithProviderLogger(discardLogger()), WithRecorder(recorder))

	assert.Equal(t, StatusDegraded, p.Status())
	require.Error(t, p.InitError())
	assert.Contains(t, p.InitError().Error(), "model unreachable")

	for i := 0; i < 3; i++ {
		_, err := p.Embed(context.Background(), "맛있다")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, []Outcome{OutcomeDegraded, OutcomeDegraded, OutcomeDegraded}, recorder.outcomes)
}

func TestProvider_NilFactoryIsDegraded(t *testing.T) {
	p := NewProvider(context.Background(), nil, WithProviderLogger(discardLogger()))
	assert.Equal(t, StatusDegraded, p.Status())
	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProvider_DimensionMismatchAtInit(t *testing.T) {
	backend := &stubBackend{dimension: 768, vector: make([]float32, 768)}
	p := NewProvider(context.Background(), factoryOf(backend),
		WithDimension(1536),
		WithProviderLogger(discardLogger()),
	)
	assert.Equal(t, StatusDegraded, p.Status())
	assert.Equal(t, 1536, p.Dimension())
}

func TestProvider_TimeoutIsUnavailable(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{dimension: 3, block: true}
	p := NewProvider(context.Background(), factoryOf(backend),
		WithTimeout(20*time.Millisecond),
		WithRecorder(recorder),
		WithProviderLogger(discardLogger()),
	)

	start := time.Now()
	_, err := p.Embed(context.Background(), "느린 요청")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []Outcome{OutcomeTimeout}, recorder.outcomes)
}

func TestProvider_BackendErrorIsUnavailable(t *testing.T) {
	backend := &stubBackend{dimension: 3, err: errors.New("503")}
	p := NewProvider(context.Background(), factoryOf(backend), WithProviderLogger(discardLogger()))

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProvider_WrongVectorLengthIsUnavailable(t *testing.T) {
	backend := &stubBackend{dimension: 3, vector: []float32{1, 2}}
	p := NewProvider(context.Background(), factoryOf(backend), WithProviderLogger(discardLogger()))

	_, err := p.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProvider_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{dimension: 3, err: errors.New("boom")}
	p := NewProvider(context.Background(), factoryOf(backend),
		WithBreaker(BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute}),
		WithRecorder(recorder),
		WithProviderLogger(discardLogger()),
	)

	for i := 0; i < 4; i++ {
		_, err := p.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(2), backend.calls.Load())
	assert.Equal(t, OutcomeBreakerOpen, recorder.outcomes[3])
}

func TestProvider_CacheHitsAndInvalidate(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &stubBackend{dimension: 2, vector: []float32{0.5, 0.5}}
	p := NewProvider(context.Background(), factoryOf(backend),
		WithCache(8),
		WithRecorder(recorder),
		WithProviderLogger(discardLogger()),
	)

	ctx := context.Background()
	first, err := p.Embed(ctx, "조용 카페")
	require.NoError(t, err)
	first[0] = 42

	second, err := p.Embed(ctx, "조용 카페")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, second)
	assert.Equal(t, int32(1), backend.calls.Load())

	p.Invalidate("조용 카페")
	_, err = p.Embed(ctx, "조용 카페")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.calls.Load())
	assert.Equal(t, []Outcome{OutcomeOK, OutcomeCacheHit, OutcomeOK}, recorder.outcomes)
}

func TestProvider_RateLimitWaitCancelled(t *testing.T) {
	backend := &stubBackend{dimension: 1, vector: []float32{1}}
	p := NewProvider(context.Background(), factoryOf(backend),
		WithRateLimit(0.001, 1),
		WithProviderLogger(discardLogger()),
	)

	_, err := p.Embed(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Embed(ctx, "b")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), backend.calls.Load())
}

// ctxBackend は呼び出し元の ctx が終わっていればそのエラーを返す
type ctxBackend struct {
	vector []float32
	calls  atomic.Int32
}

func (b *ctxBackend) Encode(ctx context.Context, text string) ([]float32, error) {
	b.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.vector, nil
}

func (b *ctxBackend) Dimension() int    { return len(b.vector) }
func (b *ctxBackend) ModelName() string { return "ctx-model" }

func TestProvider_CallerCancellationDoesNotOpenBreaker(t *testing.T) {
	recorder := &stubRecorder{}
	backend := &ctxBackend{vector: []float32{0, 1}}
	p := NewProvider(context.Background(), factoryOf(backend),
		WithBreaker(BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Minute}),
		WithRecorder(recorder),
		WithProviderLogger(discardLogger()),
	)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := p.Embed(cancelled, "x")
		assert.ErrorIs(t, err, ErrUnavailable)
	}

	got, err := p.Embed(context.Background(), "정상 요청")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, got)
	assert.Equal(t, int32(6), backend.calls.Load())
	assert.Equal(t, OutcomeCanceled, recorder.outcomes[0])
	assert.Equal(t, OutcomeOK, recorder.outcomes[5])
}

// gateBackend は release が閉じられるまで応答しない
type gateBackend struct {
	vector  []float32
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *gateBackend) Encode(ctx context.Context, text string) ([]float32, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-b.release:
		return b.vector, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *gateBackend) Dimension() int    { return len(b.vector) }
func (b *gateBackend) ModelName() string { return "gate-model" }

func TestProvider_SharedCallSurvivesFirstCallerCancel(t *testing.T) {
	backend := &gateBackend{
		vector:  []float32{1, 0},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := NewProvider(context.Background(), factoryOf(backend),
		WithCache(8),
		WithProviderLogger(discardLogger()),
	)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := p.Embed(firstCtx, "혼밥 맛집")
		firstErr <- err
	}()

	<-backend.started
	cancelFirst()
	err := <-firstErr
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	close(backend.release)
	got, err := p.Embed(context.Background(), "혼밥 맛집")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, got)
	assert.Equal(t, int32(1), backend.calls.Load())
}
