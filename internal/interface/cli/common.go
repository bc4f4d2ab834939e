package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cureat/cureat/internal/platform/config"
	"github.com/cureat/cureat/internal/platform/container"
	"github.com/cureat/cureat/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config    *config.Config
	Container *container.ServiceContainer
}

// NewAppContext は設定ファイルを読み込み、依存関係を組み立てて AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	cont, err := container.NewContainer(ctx, cfg, container.WithContainerLogger(appLogger))
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:    cfg,
		Container: cont,
	}, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return nil, fmt.Errorf("ログレベルの解釈に失敗: %w", err)
	}
	return logger.New(logger.Config{Level: level, Format: cfg.Log.Format}), nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Container != nil {
		ac.Container.Close()
	}
}

// Logger はAppContextのロガーを返す
func (ac *AppContext) Logger() *slog.Logger {
	if ac.Container != nil {
		return ac.Container.Logger()
	}
	return slog.Default()
}
