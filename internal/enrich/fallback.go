package enrich

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"docqr-backend/internal/shared/telemetry"
)

const (
	fallbackSummaryTokens = 50
	fallbackTagCount      = 5
	minTagRunes           = 4
)

// Constant pair used when even the fallback cannot be built.
const ConstantSummary = "Документ содержит текстовую информацию"

// ConstantTags is the tag set paired with ConstantSummary.
func ConstantTags() []string { return []string{"документ", "текст"} }

var stopWords = map[string]struct{}{
	"и": {}, "в": {}, "на": {}, "с": {}, "по": {}, "для": {}, "от": {}, "до": {}, "из": {}, "к": {},
	"о": {}, "об": {}, "за": {}, "при": {}, "про": {}, "через": {}, "под": {}, "над": {}, "между": {},
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// Fallback builds a summary from the first 50 tokens and tags from the five
// most frequent tokens of four or more characters, ties in first-seen order.
// It is deterministic and never panics out.
func Fallback(text string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("enrich.fallback_failed", map[string]any{"error": rec})
			res = Result{Summary: ConstantSummary, Tags: ConstantTags(), Source: SourceFallback}
		}
	}()

	tokens := strings.Fields(text)
	return Result{
		Summary: summarize(tokens),
		Tags:    topTags(tokens),
		Source:  SourceFallback,
	}
}

func summarize(tokens []string) string {
	if len(tokens) <= fallbackSummaryTokens {
		return strings.Join(tokens, " ")
	}
	return strings.Join(tokens[:fallbackSummaryTokens], " ") + "..."
}

func topTags(tokens []string) []string {
	type entry struct {
		word  string
		count int
	}
	var order []*entry
	index := make(map[string]*entry)
	for _, tok := range tokens {
		word := strings.ToLower(strings.TrimFunc(tok, isEdgePunct))
		if utf8.RuneCountInString(word) < minTagRunes {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if e, ok := index[word]; ok {
			e.count++
			continue
		}
		e := &entry{word: word, count: 1}
		index[word] = e
		order = append(order, e)
	}

	// Stable selection: a later word only displaces an earlier one with a
	// strictly higher count.
	tags := make([]string, 0, fallbackTagCount)
	taken := make([]bool, len(order))
	for len(tags) < fallbackTagCount {
		best := -1
		for i, e := range order {
			if taken[i] {
				continue
			}
			if best < 0 || e.count > order[best].count {
				best = i
			}
		}
		if best < 0 {
			break
		}
		taken[best] = true
		tags = append(tags, order[best].word)
	}
	return tags
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
