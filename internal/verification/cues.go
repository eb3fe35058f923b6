package verification

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// English cues matched as whole words.
var digitalWords = map[string]bool{
	"phone": true, "phones": true, "smartphone": true,
	"app": true, "apps": true,
	"instagram": true, "youtube": true, "tiktok": true,
	"sns": true, "gaming": true, "games": true,
	"screentime": true,
}

// Phrases and Korean cues matched as substrings.
var digitalPhrases = []string{
	"screen time", "social media",
	"스크린타임", "스크린 타임", "휴대폰", "핸드폰", "스마트폰", "폰", "앱",
	"유튜브", "인스타", "틱톡", "게임", "sns",
}

// HasDigitalCue reports whether text describes a screen-based goal.
func HasDigitalCue(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	folded := cases.Fold().String(width.Fold.String(norm.NFC.String(text)))

	for _, p := range digitalPhrases {
		if strings.Contains(folded, p) {
			return true
		}
	}
	for _, w := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if digitalWords[w] {
			return true
		}
	}
	return false
}
