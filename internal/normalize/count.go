package normalize

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
)

const (
	minPerWeek = 1
	maxPerWeek = 7
)

var (
	reDigits = regexp.MustCompile(`\d+`)

	// reWeekUnit matches the "per week" part of a phrase, including its own
	// number ("1주일", "한 주"), so that number is never read as the count.
	reWeekUnit = regexp.MustCompile(`\d+\s*주일?|일주일|한\s*주일?|매주|per\s+week|a\s+week|each\s+week|every\s+week|weekly|weeks?|주일?`)

	reDigitsCount = regexp.MustCompile(`(\d+)\s*(?:번|회|times?|x)`)
	reWordsCount  = regexp.MustCompile(`(` + countWordAlternation() + `)\s*(?:번|회|times?)`)
)

// Longer words first so "다섯" is not read as "다".
var countWords = []struct {
	word string
	n    int
}{
	{"every day", 7}, {"everyday", 7}, {"daily", 7}, {"매일", 7},
	{"다섯", 5}, {"여섯", 6}, {"일곱", 7}, {"하나", 1},
	{"seven", 7}, {"three", 3}, {"thrice", 3}, {"twice", 2}, {"once", 1},
	{"four", 4}, {"five", 5}, {"six", 6}, {"two", 2}, {"one", 1},
	{"한", 1}, {"두", 2}, {"둘", 2}, {"세", 3}, {"셋", 3}, {"네", 4}, {"넷", 4},
}

func countWordAlternation() string {
	words := make([]string, len(countWords))
	for i, w := range countWords {
		words[i] = regexp.QuoteMeta(w.word)
	}
	return strings.Join(words, "|")
}

func countWord(word string) int {
	for _, w := range countWords {
		if w.word == word {
			return w.n
		}
	}
	return 0
}

// PerWeek reads a weekly session count and clamps it to [1, 7]. It never
// yields 0 for input it cannot read; ok is false instead.
func PerWeek(raw any) (int, bool) {
	var n int
	switch v := raw.(type) {
	case nil, bool:
		return 0, false
	case string:
		var ok bool
		if n, ok = countOfText(v); !ok {
			return 0, false
		}
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, false
		}
		n = int(f + 0.5)
	}
	return clamp(n, minPerWeek, maxPerWeek), true
}

// countOfText drops the week unit, then prefers a number attached to a
// count unit (번, 회, times). A bare number is accepted only when it is the
// only one left; anything else is unreadable.
func countOfText(s string) (int, bool) {
	text := fold(s)
	if text == "" {
		return 0, false
	}
	text = reWeekUnit.ReplaceAllString(text, " ")

	if m := reDigitsCount.FindStringSubmatch(text); m != nil {
		return atoi(m[1]), true
	}
	if m := reWordsCount.FindStringSubmatch(text); m != nil {
		return countWord(m[1]), true
	}

	switch nums := reDigits.FindAllString(text, -1); {
	case len(nums) == 1:
		return atoi(nums[0]), true
	case len(nums) > 1:
		return 0, false
	}
	for _, w := range countWords {
		if strings.Contains(text, w.word) {
			return w.n, true
		}
	}
	return 0, false
}

func clamp(n, lo, hi int) int {
	return max(lo, min(n, hi))
}
