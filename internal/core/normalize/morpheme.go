package normalize

import "strings"

// Tag は形態素の品詞タグ
type Tag string

const (
	TagNoun           Tag = "Noun"
	TagVerb           Tag = "Verb"
	TagAdjective      Tag = "Adjective"
	TagJosa           Tag = "Josa"
	TagEomi           Tag = "Eomi"
	TagAdverb         Tag = "Adverb"
	TagDeterminer     Tag = "Determiner"
	TagKoreanParticle Tag = "KoreanParticle"
)

// Morpheme は解析済みの形態素（見出し語と品詞）
type Morpheme struct {
	Text string
	Tag  Tag
}

// Content は内容語（名詞・動詞・形容詞）かどうかを返す
func (m Morpheme) Content() bool {
	switch m.Tag {
	case TagNoun, TagVerb, TagAdjective:
		return true
	default:
		return false
	}
}

const (
	hangulBase = 0xAC00
	hangulLast = 0xD7A3
)

func isSyllable(r rune) bool {
	return r >= hangulBase && r <= hangulLast
}

func isJamo(r rune) bool {
	return (r >= 'ㄱ' && r <= 'ㅎ') || (r >= 'ㅏ' && r <= 'ㅣ')
}

// hasBatchim は音節が終声（パッチム）を持つかを返す
func hasBatchim(r rune) bool {
	return isSyllable(r) && (r-hangulBase)%28 != 0
}

// analyzeToken は空白区切りの1トークンを形態素列に分解する。
// 規則は長い語尾から順に照合する。
func analyzeToken(token string) []Morpheme {
	runes := []rune(token)
	if len(runes) == 0 {
		return nil
	}
	for _, r := range runes {
		if isJamo(r) || !isSyllable(r) {
			return []Morpheme{{Text: token, Tag: TagKoreanParticle}}
		}
	}

	if _, ok := adverbs[token]; ok {
		return []Morpheme{{Text: token, Tag: TagAdverb}}
	}
	if _, ok := determiners[token]; ok {
		return []Morpheme{{Text: token, Tag: TagDeterminer}}
	}

	if lemma, ok := irregularForms[token]; ok {
		return []Morpheme{{Text: lemma, Tag: TagAdjective}}
	}

	for _, ending := range lightVerbEndings {
		if stem, ok := strings.CutSuffix(token, ending); ok && len([]rune(stem)) >= 2 {
			return []Morpheme{
				{Text: stem, Tag: TagNoun},
				{Text: "하다", Tag: TagVerb},
				{Text: ending, Tag: TagEomi},
			}
		}
	}

	for _, ending := range predicateEndings {
		stem, ok := strings.CutSuffix(token, ending)
		if !ok || stem == "" {
			continue
		}
		if _, known := predicateStems[stem]; known {
			return []Morpheme{
				{Text: stem + "다", Tag: predicateTag(stem)},
				{Text: ending, Tag: TagEomi},
			}
		}
	}

	if stem, ok := strings.CutSuffix(token, "다"); ok && stem != "" {
		if _, noun := nounsEndingInDa[token]; !noun {
			return []Morpheme{{Text: token, Tag: predicateTag(stem)}}
		}
	}

	// 終声のある語幹 + 는 は連体形（먹는, 맛있는）
	if stem, ok := strings.CutSuffix(token, "는"); ok && stem != "" {
		stemRunes := []rune(stem)
		if hasBatchim(stemRunes[len(stemRunes)-1]) {
			return []Morpheme{
				{Text: stem + "다", Tag: predicateTag(stem)},
				{Text: "는", Tag: TagEomi},
			}
		}
	}

	return stripJosa(token)
}

// stripJosa は語末の助詞を取り除く。
// 残る語幹が1文字になる場合は、代名詞などの1文字名詞に限り取り除く。
func stripJosa(token string) []Morpheme {
	noun := token
	var particles []Morpheme
	for {
		if _, known := lexicalNouns[noun]; known {
			break
		}
		stripped := false
		for _, josa := range josaList {
			stem, ok := strings.CutSuffix(noun, josa)
			if !ok || !strippable(stem, josa) {
				continue
			}
			noun = stem
			particles = append([]Morpheme{{Text: josa, Tag: TagJosa}}, particles...)
			stripped = true
			break
		}
		if !stripped {
			break
		}
	}
	return append([]Morpheme{{Text: noun, Tag: TagNoun}}, particles...)
}

func strippable(stem, josa string) bool {
	switch n := len([]rune(stem)); {
	case n >= 2:
		return true
	case n == 1:
		_, noun := singleNouns[stem]
		_, particle := singleNounJosa[josa]
		return noun && particle
	default:
		return false
	}
}

func predicateTag(stem string) Tag {
	if tag, ok := predicateStems[stem]; ok {
		return tag
	}
	return TagVerb
}
