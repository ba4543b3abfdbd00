package keyword

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// englishStopwords and koreanStopwords filter function words that rank high
// by frequency but carry no retrieval value.
var englishStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "not": {}, "can": {}, "if": {},
}

var koreanStopwords = map[string]struct{}{
	"그리고": {}, "그러나": {}, "하지만": {}, "또한": {}, "및": {}, "등": {},
	"있다": {}, "없다": {}, "하는": {}, "있는": {}, "이런": {}, "그런": {},
	"경우": {}, "대한": {}, "위한": {}, "통해": {}, "따라": {}, "수": {},
	"것": {}, "때": {}, "더": {}, "매우": {}, "바로": {},
}

// koreanParticles are single-syllable postpositions trimmed off token tails.
// Stripping them folds "문서는" and "문서를" into the same stem without a
// full morphological analyzer.
// Ordered longest first so "으로" wins over "로".
var koreanParticles = []string{
	"으로", "에서", "에게", "까지", "부터",
	"은", "는", "이", "가", "을", "를", "에", "의", "와", "과", "도", "로",
}

// StatisticalExtractor ranks tokens by frequency. It needs no external
// service, so it is the always-available baseline method.
type StatisticalExtractor struct {
	topN int
}

// NewStatisticalExtractor builds the frequency-based extractor.
func NewStatisticalExtractor(topN int) *StatisticalExtractor {
	if topN <= 0 {
		topN = 10
	}
	return &StatisticalExtractor{topN: topN}
}

func (e *StatisticalExtractor) Name() string { return "statistical" }

// Extract tokenizes the text, drops stopwords and short tokens, and returns
// the most frequent terms. Ties break by first appearance so output is
// deterministic for a given text.
func (e *StatisticalExtractor) Extract(_ context.Context, text string) ([]string, error) {
	tokens := tokenize(text)

	type stat struct {
		count int
		first int
	}
	counts := make(map[string]*stat)
	display := make(map[string]string)

	for i, tok := range tokens {
		norm := normalizeToken(tok)
		if norm == "" {
			continue
		}
		key := strings.ToLower(norm)
		if s, ok := counts[key]; ok {
			s.count++
		} else {
			counts[key] = &stat{count: 1, first: i}
			display[key] = norm
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		sa, sb := counts[keys[a]], counts[keys[b]]
		if sa.count != sb.count {
			return sa.count > sb.count
		}
		return sa.first < sb.first
	})

	if len(keys) > e.topN {
		keys = keys[:e.topN]
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = display[k]
	}
	return out, nil
}

// QueryTerms extracts the content-bearing terms from a search query: the
// same tokenization, particle stripping, and stopword filtering applied to
// passages at index time, deduplicated in first-appearance order. Query-side
// callers use it to match terms against stored chunk keywords.
func QueryTerms(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range tokenize(text) {
		norm := normalizeToken(tok)
		if norm == "" {
			continue
		}
		key := strings.ToLower(norm)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// tokenize splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// normalizeToken strips trailing Korean particles and filters stopwords and
// tokens too short to be useful. Returns "" for tokens to discard.
func normalizeToken(tok string) string {
	if isHangul(tok) {
		tok = stripParticle(tok)
	}

	runes := []rune(tok)
	if len(runes) < 2 {
		return ""
	}
	lower := strings.ToLower(tok)
	if _, ok := englishStopwords[lower]; ok {
		return ""
	}
	if _, ok := koreanStopwords[tok]; ok {
		return ""
	}
	// Pure numbers rank high in tabular documents but make poor keywords.
	allDigits := true
	for _, r := range runes {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return ""
	}
	return tok
}

func stripParticle(tok string) string {
	runes := []rune(tok)
	if len(runes) < 3 {
		return tok
	}
	for _, p := range koreanParticles {
		pr := []rune(p)
		if len(runes)-len(pr) >= 2 && strings.HasSuffix(tok, p) {
			return string(runes[:len(runes)-len(pr)])
		}
	}
	return tok
}

func isHangul(tok string) bool {
	for _, r := range tok {
		if !unicode.Is(unicode.Hangul, r) {
			return false
		}
	}
	return tok != ""
}
