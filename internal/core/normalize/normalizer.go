// Package normalize は推薦クエリとレストラン要約を埋め込み前に正規化する。
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var nonHangulPattern = regexp.MustCompile(`[^ㄱ-ㅎㅏ-ㅣ가-힣\s]`)

// 見出し語の再解析の上限。名詞の助詞除去は毎回短くなるので実際にはすぐ収束する。
const maxAnalyzeDepth = 8

// Normalizer は韓国語テキストを内容語の見出し語列に変換する
type Normalizer struct {
	stopwords map[string]struct{}
}

// Option は Normalizer のオプション設定
type Option func(*Normalizer)

// WithStopwords はストップワードを差し替える
func WithStopwords(words ...string) Option {
	return func(n *Normalizer) {
		n.stopwords = toSet(words...)
	}
}

// New は新しい Normalizer を作成する
func New(opts ...Option) *Normalizer {
	n := &Normalizer{stopwords: toSet(DefaultStopwords...)}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var defaultNormalizer = New()

// Normalize はデフォルト設定で正規化する
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

// Normalize はハングルと空白以外を除去し、名詞・動詞・形容詞の見出し語を空白区切りで返す。
// ストップワードと1文字の語は除外する。
func (n *Normalizer) Normalize(text string) string {
	tokens := n.Tokens(text)
	return strings.Join(tokens, " ")
}

// Tokens は正規化後の見出し語を順に返す
func (n *Normalizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	cleaned := nonHangulPattern.ReplaceAllString(text, "")

	var tokens []string
	for _, m := range Analyze(cleaned) {
		if !m.Content() {
			continue
		}
		if utf8.RuneCountInString(m.Text) < 2 {
			continue
		}
		if _, stop := n.stopwords[m.Text]; stop {
			continue
		}
		tokens = append(tokens, m.Text)
	}
	return tokens
}

// Analyze はテキストを形態素列に分解する。
// 内容語の見出し語は再解析しても自身になるまで分解を繰り返す。
func Analyze(text string) []Morpheme {
	var out []Morpheme
	for _, token := range strings.Fields(text) {
		out = append(out, settle(analyzeToken(token), 0)...)
	}
	return out
}

func settle(morphemes []Morpheme, depth int) []Morpheme {
	if depth >= maxAnalyzeDepth {
		return morphemes
	}
	out := make([]Morpheme, 0, len(morphemes))
	for _, m := range morphemes {
		if !m.Content() {
			out = append(out, m)
			continue
		}
		again := analyzeToken(m.Text)
		if len(again) == 1 && again[0] == m {
			out = append(out, m)
			continue
		}
		out = append(out, settle(again, depth+1)...)
	}
	return out
}
