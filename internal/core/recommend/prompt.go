package recommend

import (
	"fmt"
	"strings"
)

// BuildAnswerPrompt は推薦理由を生成するためのプロンプトを構築する
func BuildAnswerPrompt(userPrompt string, restaurants []ScoredRestaurant) string {
	var b strings.Builder

	b.WriteString("당신은 맛집 추천 도우미입니다. 아래 후보 목록만 사용해서 사용자의 요청에 맞는 추천 답변을 한국어로 3~5문장 작성하세요.\n")
	b.WriteString("목록에 없는 가게를 지어내지 말고, 각 가게를 추천하는 이유를 요약 정보에 근거해 설명하세요.\n\n")
	fmt.Fprintf(&b, "## 사용자 요청\n%s\n\n", userPrompt)
	b.WriteString("## 후보 목록 (유사도 순)\n")

	for i, sr := range restaurants {
		r := sr.Restaurant
		fmt.Fprintf(&b, "%d. %s (유사도 %.3f)\n", i+1, r.Name, sr.Score)
		writeField(&b, "카테고리", r.Summary.Category.OrEmpty())
		writeField(&b, "주소", r.Summary.Address.OrEmpty())
		writeField(&b, "설명", r.Summary.Description.OrEmpty())
		writeField(&b, "대표 메뉴", r.Summary.FeatureMenu.OrEmpty())
		writeField(&b, "가격대", r.Summary.PriceTier.OrEmpty())
		writeField(&b, "영업시간", r.Summary.OpeningHours.OrEmpty())
		writeField(&b, "주차", r.Summary.Parking.OrEmpty())
	}

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "   - %s: %s\n", label, value)
}

// TemplateAnswer はLLMを使わずに推薦文を組み立てる
func TemplateAnswer(userPrompt string, restaurants []ScoredRestaurant) string {
	if len(restaurants) == 0 {
		return MessageNoMatch
	}
	names := make([]string, 0, len(restaurants))
	for _, sr := range restaurants {
		names = append(names, sr.Restaurant.Name)
	}
	return fmt.Sprintf("'%s' 요청에 어울리는 맛집 %d곳을 추천합니다: %s",
		strings.TrimSpace(userPrompt), len(restaurants), strings.Join(names, ", "))
}
