package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	appcli "github.com/cureat/cureat/internal/interface/cli"
)

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env",
		Usage: "環境変数ファイルパス",
		Value: ".env",
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 設定読み込み前の構造化ログ
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "cureat",
		Usage: "自由文の要求からレストランを推薦するバックエンド",
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "HTTPサーバコマンド",
				Commands: []*cli.Command{
					{
						Name:   "start",
						Usage:  "HTTPサーバを起動",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.ServerStartAction,
					},
				},
			},
			{
				Name:  "restaurant",
				Usage: "レストラン管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "import",
						Usage: "YAMLシードからレストランを一括登録して再インデックス",
						Flags: []cli.Flag{
							envFlag(),
							&cli.StringFlag{
								Name:     "file",
								Usage:    "シードファイルパス",
								Required: true,
							},
						},
						Action: appcli.RestaurantImportAction,
					},
					{
						Name:   "reindex",
						Usage:  "全レストランの埋め込みを作り直す",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.RestaurantReindexAction,
					},
				},
			},
			{
				Name:  "recommend",
				Usage: "要求文からレストランを推薦",
				Flags: []cli.Flag{
					envFlag(),
					&cli.StringFlag{
						Name:     "prompt",
						Usage:    "要求文",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "推薦件数（省略時は RECOMMEND_TOP_K）",
					},
					&cli.IntFlag{
						Name:  "user",
						Usage: "検索履歴を記録する利用者ID",
					},
				},
				Action: appcli.RecommendAction,
			},
			{
				Name:  "db",
				Usage: "データベース管理コマンド",
				Commands: []*cli.Command{
					{
						Name:   "migrate",
						Usage:  "スキーマを適用",
						Flags:  []cli.Flag{envFlag()},
						Action: appcli.DBMigrateAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
