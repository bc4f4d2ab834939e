package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/cureat/cureat/internal/core/catalog"
	"github.com/cureat/cureat/internal/core/indexing"
)

// seedFile はレストラン一括登録用のYAML
type seedFile struct {
	Restaurants []seedRestaurant `yaml:"restaurants"`
}

type seedRestaurant struct {
	Name         string `yaml:"name"`
	ImageURL     string `yaml:"image_url"`
	Place        string `yaml:"place"`
	Address      string `yaml:"address"`
	Category     string `yaml:"category"`
	Description  string `yaml:"description"`
	FeatureMenu  string `yaml:"feature_menu"`
	Phone        string `yaml:"phone"`
	Parking      string `yaml:"parking"`
	PriceTier    string `yaml:"price_tier"`
	OpeningHours string `yaml:"opening_hours"`
}

func (s seedRestaurant) params() catalog.CreateRestaurantParams {
	return catalog.CreateRestaurantParams{
		Name:     s.Name,
		ImageURL: mo.EmptyableToOption(s.ImageURL),
		Summary: catalog.RestaurantSummary{
			Place:        mo.EmptyableToOption(s.Place),
			Address:      mo.EmptyableToOption(s.Address),
			Category:     mo.EmptyableToOption(s.Category),
			Description:  mo.EmptyableToOption(s.Description),
			FeatureMenu:  mo.EmptyableToOption(s.FeatureMenu),
			Phone:        mo.EmptyableToOption(s.Phone),
			Parking:      mo.EmptyableToOption(s.Parking),
			PriceTier:    mo.EmptyableToOption(s.PriceTier),
			OpeningHours: mo.EmptyableToOption(s.OpeningHours),
		},
	}
}

// LoadSeedFile はYAMLのシードファイルを読み込む
func LoadSeedFile(path string) ([]catalog.CreateRestaurantParams, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("シードファイルの読み込みに失敗: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("シードファイルの解析に失敗: %w", err)
	}
	if len(seed.Restaurants) == 0 {
		return nil, fmt.Errorf("シードファイルにレストランがありません: %s", path)
	}

	params := make([]catalog.CreateRestaurantParams, 0, len(seed.Restaurants))
	for _, r := range seed.Restaurants {
		params = append(params, r.params())
	}
	return params, nil
}

// RestaurantImportAction はシードファイルからレストランを登録し、再インデックスする
func RestaurantImportAction(ctx context.Context, cmd *cli.Command) error {
	file := cmd.String("file")
	envFile := cmd.String("env")

	params, err := LoadSeedFile(file)
	if err != nil {
		return err
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("レストラン一括登録を開始", "file", file, "count", len(params))

	created, err := appCtx.Container.Catalog.ImportRestaurants(ctx, params)
	if err != nil {
		slog.Error("レストラン一括登録に失敗しました", "error", err)
		return err
	}

	report, err := appCtx.Container.Indexer.ReindexAll(ctx)
	if err != nil {
		return fmt.Errorf("再インデックスに失敗: %w", err)
	}

	fmt.Printf("登録: %d件\n", len(created))
	renderReindexReport(os.Stdout, report)
	return nil
}

// RestaurantReindexAction は全レストランを再インデックスする
func RestaurantReindexAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	slog.Info("再インデックスを開始")

	report, err := appCtx.Container.Indexer.ReindexAll(ctx)
	if err != nil {
		slog.Error("再インデックスに失敗しました", "error", err)
		return err
	}

	renderReindexReport(os.Stdout, report)
	return nil
}

func renderReindexReport(w io.Writer, report *indexing.Report) {
	table := tablewriter.NewWriter(w)
	table.Header("結果", "件数")
	table.Append("インデックス", strconv.Itoa(report.Indexed))
	table.Append("スキップ", strconv.Itoa(report.Skipped))
	table.Append("削除", strconv.Itoa(report.Removed))
	table.Append("失敗", strconv.Itoa(report.Failed))
	table.Render()
}
