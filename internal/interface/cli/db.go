package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/cureat/cureat/internal/infra/postgres"
	"github.com/cureat/cureat/internal/platform/config"
)

// DBMigrateAction はスキーマを適用する。コンテナは組み立てずDBにだけ接続する。
func DBMigrateAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if _, err := newLogger(cfg); err != nil {
		return err
	}

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
		return fmt.Errorf("データベース接続に失敗: %w", err)
	}
	defer db.Close()

	slog.Info("マイグレーションを開始", "dimension", cfg.Embedding.Dimension)
	if err := postgres.Migrate(ctx, db.Pool, cfg.Embedding.Dimension); err != nil {
		slog.Error("マイグレーションに失敗しました", "error", err)
		return err
	}
	slog.Info("マイグレーションが完了しました")
	return nil
}
