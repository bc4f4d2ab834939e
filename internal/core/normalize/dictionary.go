package normalize

// DefaultStopwords は推薦クエリから除外する語
var DefaultStopwords = []string{
	"하다", "있다", "되다", "그", "않다", "없다", "나", "말", "사람", "이", "보다", "등", "같다",
}

var adverbs = toSet(
	"정말", "진짜", "너무", "아주", "매우", "좀", "잘", "더", "많이", "조금", "가장", "제일",
	"꼭", "같이", "함께", "빨리", "다시", "또", "자주", "항상", "그냥", "혹시", "특히", "제발",
)

var determiners = toSet(
	"이", "그", "저", "이런", "그런", "저런", "어떤", "무슨", "모든", "어느", "새", "각", "여러",
)

// 「다」で終わるが用言ではない名詞
var nounsEndingInDa = toSet("바다", "마다", "사다리")

// 助詞に見える音節で終わる名詞
var lexicalNouns = toSet("떡볶이", "고양이", "어린이", "놀이", "구이", "순두부", "만두", "우도", "제주도")

// 助詞を外してよい1文字名詞（代名詞と1文字のストップワード）
var singleNouns = toSet("나", "너", "저", "제", "내", "네", "말", "등")

// 1文字名詞から外す助詞。「이」は「나이」のような2文字名詞と区別できないので含めない。
var singleNounJosa = toSet("는", "은", "가", "도", "를", "을", "의", "만", "랑", "한테", "에게", "하고")

// 語幹の母音が変化する活用形
var irregularForms = map[string]string{
	"싼":   "싸다",
	"비싼":  "비싸다",
	"큰":   "크다",
	"예쁜":  "예쁘다",
	"가까운": "가깝다",
	"매운":  "맵다",
	"추운":  "춥다",
	"더운":  "덥다",
	"쉬운":  "쉽다",
	"어려운": "어렵다",
	"귀여운": "귀엽다",
	"뜨거운": "뜨겁다",
	"차가운": "차갑다",
	"부드러운": "부드럽다",
}

// 名詞 + 하다 の活用語尾。長いものから照合する。
var lightVerbEndings = []string{
	"해주세요", "해주는", "해줄래", "해줘요", "해줘", "해줄",
	"합니다", "했어요", "했던", "했어", "했다", "해요", "해서",
	"하다", "한다", "하는", "하게", "하면", "하기", "해", "한", "할",
}

// 既知の用言語幹に続く語尾。長いものから照合する。
var predicateEndings = []string{
	"습니다", "었어요", "았어요", "어서", "아서", "어요", "아요", "었다", "았다",
	"으면", "지만", "네요", "는데", "은데", "고", "게", "어", "아", "은", "는", "을", "면",
}

var predicateStems = map[string]Tag{
	"좋":   TagAdjective,
	"많":   TagAdjective,
	"괜찮":  TagAdjective,
	"싫":   TagAdjective,
	"넓":   TagAdjective,
	"좁":   TagAdjective,
	"높":   TagAdjective,
	"낮":   TagAdjective,
	"깊":   TagAdjective,
	"작":   TagAdjective,
	"적":   TagAdjective,
	"같":   TagAdjective,
	"맑":   TagAdjective,
	"짧":   TagAdjective,
	"맛있":  TagAdjective,
	"맛없":  TagAdjective,
	"멋있":  TagAdjective,
	"재밌":  TagAdjective,
	"재미있": TagAdjective,
	"있":   TagAdjective,
	"없":   TagAdjective,
	"싸":   TagAdjective,
	"비싸":  TagAdjective,
	"크":   TagAdjective,
	"예쁘":  TagAdjective,
	"가깝":  TagAdjective,
	"맵":   TagAdjective,
	"춥":   TagAdjective,
	"덥":   TagAdjective,
	"쉽":   TagAdjective,
	"어렵":  TagAdjective,
	"귀엽":  TagAdjective,
	"뜨겁":  TagAdjective,
	"차갑":  TagAdjective,
	"부드럽": TagAdjective,
	"달":   TagAdjective,
	"짜":   TagAdjective,
	"먹":   TagVerb,
	"마시":  TagVerb,
	"찾":   TagVerb,
	"앉":   TagVerb,
	"받":   TagVerb,
	"싶":   TagVerb,
	"되":   TagVerb,
	"않":   TagVerb,
	"보":   TagVerb,
}

// 語末の助詞。長いものから照合する。
var josaList = []string{
	"에서는", "에서도", "으로는", "이랑", "에서", "으로", "로는", "에게", "한테", "까지", "부터", "처럼", "보다", "하고",
	"랑", "와", "과", "은", "는", "이", "가", "을", "를", "의", "에", "로", "도", "만",
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
