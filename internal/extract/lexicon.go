package extract

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Brands is the merchant lexicon. Order is the match priority.
var Brands = []string{
	"스타벅스", "이디야", "투썸", "할리스", "폴바셋", "파스쿠찌", "메가커피",
	"배스킨라빈스", "던킨", "파리바게뜨", "뚜레쥬르", "버거킹", "맥도날드",
	"CU", "GS25", "세븐일레븐", "미니스톱",
}

// MenuKeywords are item names that mark a line as a plausible menu entry.
var MenuKeywords = []string{
	"아메리카노", "에스프레소", "라떼", "카페라떼", "바닐라라떼", "카푸치노", "콜드브루",
	"헤이즐넛", "카라멜마키아토", "카페모카", "화이트모카", "돌체라떼", "샷", "디카페인",
	"아이스아메리카노", "아이스라떼", "아이스바닐라라떼", "아이스모카", "아이스콜드브루", "아이스티",
	"그린티", "블랙티", "얼그레이", "캐모마일", "유자차", "자몽", "레몬에이드", "복숭아아이스티", "초코", "초콜릿",
	"스콘", "케이크", "마카롱", "쿠키",
}

// LabelWords are field labels printed in front of the item name.
var LabelWords = []string{"상품명", "제품명", "메뉴명", "상품", "Item", "ITEM", "Product", "PRODUCT"}

var (
	quantityWords    = []string{"수량", "매수", "개", "QTY"}
	boilerplateTerms = []string{"유효기간", "까지", "만료", "사용처", "안내", "고객센터", "교환", "코드", "바코드", "포인트", "결제", "주문"}
	expiryKeywords   = []string{"유효기간", "만료", "까지", "사용기한", "교환기한", "valid", "expire"}
)

// lexicon matches a fixed word list against text in a single pass,
// ignoring case. Safe for concurrent use.
type lexicon struct {
	words   []string
	matcher *ahocorasick.Matcher
}

func newLexicon(words []string) *lexicon {
	patterns := make([][]byte, len(words))
	for i, w := range words {
		patterns[i] = []byte(strings.ToLower(w))
	}
	return &lexicon{
		words:   words,
		matcher: ahocorasick.NewMatcher(patterns),
	}
}

// first returns the lexicon entry with the lowest index found in s.
func (l *lexicon) first(s string) (string, bool) {
	hits := l.matcher.MatchThreadSafe([]byte(strings.ToLower(s)))
	if len(hits) == 0 {
		return "", false
	}
	best := hits[0]
	for _, h := range hits[1:] {
		if h < best {
			best = h
		}
	}
	return l.words[best], true
}

func (l *lexicon) contains(s string) bool {
	return len(l.matcher.MatchThreadSafe([]byte(strings.ToLower(s)))) > 0
}

var (
	brandLexicon    = newLexicon(Brands)
	menuLexicon     = newLexicon(MenuKeywords)
	expiryLexicon   = newLexicon(expiryKeywords)
	quantityLexicon = newLexicon(quantityWords)
	blockLexicon    = newLexicon(boilerplateTerms)
)

// hasPrefixFold reports whether s starts with prefix ignoring case.
func hasPrefixFold(s, prefix string) bool {
	return strings.HasPrefix(strings.ToLower(s), strings.ToLower(prefix))
}
