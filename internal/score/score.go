// Package score provides the text-quality heuristics used to rank OCR output.
// All functions are pure and deterministic so candidates from different
// engines can be compared on equal footing.
package score

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxScore is the upper clamp for Text. Scores land in [0, MaxScore].
const MaxScore = 2.2

// EmailPattern matches a standard email address. Email presence is the
// single most reliable signal on a business card and drives early exit.
var EmailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

var (
	wordPattern  = regexp.MustCompile(`[A-Za-z]+`)
	phonePattern = regexp.MustCompile(`\b\d{3}[\s\-.]?\d{3}[\s\-.]?\d{4}\b`)
)

// commonKeywords are terms that frequently appear on real business cards.
// Hits reward a candidate because garbled OCR output almost never contains them.
var commonKeywords = map[string]struct{}{
	"phone": {}, "email": {}, "manager": {}, "care": {}, "health": {},
	"medical": {}, "center": {}, "hospice": {}, "clinic": {}, "address": {},
	"cell": {}, "mobile": {}, "fax": {}, "office": {}, "contact": {},
	"colorado": {}, "assist": {}, "suite": {}, "road": {}, "street": {},
	"drive": {},
}

var boostKeywords = []string{"email", "phone", "manager", "center", "case", "nursing", "care"}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// Text scores OCR output by character composition, word plausibility and
// the presence of contact-card signals. Result is clamped to [0, MaxScore].
func Text(text string) float64 {
	if text == "" {
		return 0
	}

	var b strings.Builder
	for _, r := range text {
		if unicode.IsPrint(r) || r == '\n' {
			b.WriteRune(r)
		}
	}
	stripped := b.String()
	if stripped == "" {
		return 0
	}

	var letters, digits, spaces int
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		case unicode.IsSpace(r):
			spaces++
		}
	}
	length := len([]rune(stripped))
	punctuation := length - letters - digits - spaces

	base := (float64(letters) + 0.6*float64(digits) + 0.3*float64(punctuation)) / float64(length)

	words := alphaWords(stripped)
	if len(words) > 0 {
		vowelWords := 0
		totalLen := 0
		keywordHits := 0
		for _, w := range words {
			if strings.ContainsFunc(w, isVowel) {
				vowelWords++
			}
			totalLen += len(w)
			if _, ok := commonKeywords[strings.ToLower(w)]; ok {
				keywordHits++
			}
		}

		vowelRatio := float64(vowelWords) / float64(len(words))
		if vowelRatio < 0.35 {
			base *= 0.35
		} else {
			base *= 1.05
		}

		avgWordLen := float64(totalLen) / float64(len(words))
		if avgWordLen < 2.2 {
			base *= 0.4
		} else if avgWordLen > 9 {
			base *= 0.7
		}

		if keywordHits > 0 {
			if keywordHits > 4 {
				keywordHits = 4
			}
			base += float64(keywordHits) * 0.08
		}
	} else {
		base *= 0.2
	}

	if strings.Contains(stripped, "@") {
		base += 0.4
	}
	lower := strings.ToLower(stripped)
	for _, kw := range boostKeywords {
		if strings.Contains(lower, kw) {
			base += 0.2
			break
		}
	}

	unique := map[rune]struct{}{}
	for _, r := range stripped {
		unique[r] = struct{}{}
	}
	if float64(len(unique)) <= float64(length)*0.2 {
		base *= 0.5
	}

	if len(strings.Fields(stripped)) >= 4 {
		base += 0.1
	}

	if base > MaxScore {
		return MaxScore
	}
	return base
}

// alphaWords returns alphabetic runs longer than one character.
func alphaWords(s string) []string {
	all := wordPattern.FindAllString(s, -1)
	out := all[:0]
	for _, w := range all {
		if len(w) > 1 {
			out = append(out, w)
		}
	}
	return out
}

// LineValid is a lighter-weight filter applied to individual lines when
// merging multi-engine output: letter ratio >= 0.4, vowel ratio >= 0.25,
// length >= 3 and a minimal Text score.
func LineValid(line string) bool {
	if len(line) < 3 {
		return false
	}

	letters := 0
	vowels := 0
	length := len([]rune(line))
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
		}
		if isVowel(r) {
			vowels++
		}
	}
	if letters < 2 {
		return false
	}
	if float64(letters)/float64(length) < 0.4 {
		return false
	}
	if float64(vowels)/float64(length) < 0.25 {
		return false
	}
	return Text(line) >= 0.2
}

// Gibberish reports whether text is likely OCR noise: low score, low vowel
// ratio among letters and no email marker.
func Gibberish(text string) bool {
	if text == "" {
		return true
	}
	if Text(text) >= 0.35 {
		return false
	}
	letters := 0
	vowels := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if isVowel(r) {
				vowels++
			}
		}
	}
	if letters == 0 {
		return true
	}
	return float64(vowels)/float64(letters) < 0.2 && !strings.Contains(text, "@")
}

// Rotational is the cheap fast-path score used to pick the best of a few
// rotation/contrast variants: emails weigh 10, phone numbers 5, plus word count.
func Rotational(text string) float64 {
	if text == "" {
		return -1
	}
	emails := len(EmailPattern.FindAllString(text, -1))
	phones := len(phonePattern.FindAllString(text, -1))
	return float64(emails)*10 + float64(phones)*5 + float64(len(strings.Fields(text)))
}

// HasEmail reports whether text contains a well-formed email address.
func HasEmail(text string) bool { return EmailPattern.MatchString(text) }

// CleanText normalizes OCR output: trims each line, collapses internal
// whitespace and drops empty lines.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
