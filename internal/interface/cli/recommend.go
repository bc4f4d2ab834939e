package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/mo"
	"github.com/urfave/cli/v3"

	"github.com/cureat/cureat/internal/core/recommend"
)

// RecommendAction は要求文から推薦結果を表示する。--prompt がなければ対話的に入力を求める。
func RecommendAction(ctx context.Context, cmd *cli.Command) error {
	prompt := cmd.String("prompt")
	topK := cmd.Int("top-k")
	envFile := cmd.String("env")

	if prompt == "" {
		p, err := askPrompt()
		if err != nil {
			return err
		}
		prompt = p
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if topK == 0 {
		topK = appCtx.Config.Recommend.TopK
	}
	params := recommend.RecommendParams{Prompt: prompt, TopK: topK}
	if userID := cmd.Int("user"); userID > 0 {
		params.UserID = mo.Some(int64(userID))
	}

	result, err := appCtx.Container.Recommender.Recommend(ctx, params)
	if err != nil {
		return fmt.Errorf("推薦に失敗: %w", err)
	}

	printRecommendation(os.Stdout, result)
	return nil
}

func askPrompt() (string, error) {
	p := promptui.Prompt{
		Label: "どんなお店を探していますか",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("要求文を入力してください")
			}
			return nil
		},
	}
	return p.Run()
}

func printRecommendation(w io.Writer, result *recommend.RecommendationResult) {
	fmt.Fprintf(w, "リクエストID: %s\n", result.RequestID)
	if result.Degraded {
		fmt.Fprintln(w, "※ 縮退応答")
	}
	fmt.Fprintf(w, "\n%s\n\n", result.Answer)
	if len(result.Restaurants) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("順位", "ID", "店名", "カテゴリ", "スコア")
	for i, r := range result.Restaurants {
		table.Append(
			strconv.Itoa(i+1),
			strconv.FormatInt(r.RestaurantID, 10),
			r.Restaurant.Name,
			r.Restaurant.Summary.Category.OrEmpty(),
			fmt.Sprintf("%.4f", r.Score),
		)
	}
	table.Render()
}
