package enrich

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackSummaryTruncatesAt50Tokens(t *testing.T) {
	words := make([]string, 60)
	for i := range words {
		words[i] = "w"
	}
	res := Fallback(strings.Join(words, "\n"))
	assert.True(t, strings.HasSuffix(res.Summary, "..."))
	assert.Len(t, strings.Fields(strings.TrimSuffix(res.Summary, "...")), 50)

	short := Fallback("just a\tfew\r\nwords")
	assert.Equal(t, "just a few words", short.Summary)
}

func TestFallbackTagsFrequencyAndTieBreak(t *testing.T) {
	text := "beta alpha gamma alpha beta delta epsilon zeta alpha"
	res := Fallback(text)
	// alpha=3, beta=2, then gamma/delta/epsilon/zeta tie at 1 in first-seen order.
	assert.Equal(t, []string{"alpha", "beta", "gamma", "delta", "epsilon"}, res.Tags)
}

func TestFallbackFiltersShortAndStopWords(t *testing.T) {
	text := "the cat and with через между между Договор договор, ДОГОВОР поставки"
	res := Fallback(text)
	assert.Equal(t, []string{"договор", "поставки"}, res.Tags)
}

func TestFallbackIsDeterministic(t *testing.T) {
	text := "отчёт проверка система отчёт данные проверка модуль система сервер клиент отчёт"
	first := Fallback(text)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first.Tags, Fallback(text).Tags)
	}
	assert.Equal(t, []string{"отчёт", "проверка", "система", "данные", "модуль"}, first.Tags)
}

func TestConstantPair(t *testing.T) {
	assert.Equal(t, "Документ содержит текстовую информацию", ConstantSummary)
	assert.Equal(t, []string{"документ", "текст"}, ConstantTags())
}
