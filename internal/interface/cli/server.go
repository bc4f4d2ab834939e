package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/cureat/cureat/internal/interface/api"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	c := appCtx.Container
	cfg := appCtx.Config

	if err := c.StartIndexSubscriber(ctx); err != nil {
		return err
	}

	handler := api.NewHandler(c.Catalog, c.Recommender, cfg.Recommend.TopK)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		RateLimitRequests:  cfg.HTTP.RateLimitRequests,
		RateLimitWindow:    cfg.HTTP.RateLimitWindow,
		Observer:           c.Metrics,
		MetricsHandler:     c.Metrics.Handler(),
		Health: func() map[string]string {
			return map[string]string{
				"embedding":    string(c.Embeddings.Status()),
				"vector_store": cfg.VectorStore.Backend,
			}
		},
		Logger: appCtx.Logger(),
	})

	slog.Info("HTTPサーバ起動を開始",
		"port", cfg.HTTP.Port,
		"embedding", string(c.Embeddings.Status()),
		"vectorStore", cfg.VectorStore.Backend,
	)

	server := api.NewServer(cfg.HTTP.Port, router, cfg.HTTP.ShutdownTimeout, appCtx.Logger())
	return server.Run(ctx)
}
