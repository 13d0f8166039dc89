package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	spaceBeforePunct = regexp.MustCompile(`\s+([.,!?:;])`)
	runTogether      = regexp.MustCompile(`([.!?])(\pL)`)

	pronounForms = map[string]string{
		"i":    "I",
		"i'm":  "I'm",
		"i'll": "I'll",
		"i'd":  "I'd",
		"i've": "I've",
	}
)

// maxNormalizePasses bounds the fixed-point loop; real input settles in two
// or three passes.
const maxNormalizePasses = 8

// Normalize cleans a finished unit of text before it is emitted.
func Normalize(text string) string {
	out := strings.TrimSpace(text)
	if out == "" {
		return ""
	}
	for i := 0; i < maxNormalizePasses; i++ {
		next := normalizePass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func normalizePass(text string) string {
	text = capitalizeFirst(text)
	text = capitalizePronouns(text)
	text = spaceBeforePunct.ReplaceAllString(text, "$1")
	text = CollapseRepeats(text)
	for {
		next := runTogether.ReplaceAllString(text, "$1 $2")
		if next == text {
			break
		}
		text = next
	}
	return text
}

func capitalizeFirst(text string) string {
	r, size := utf8.DecodeRuneInString(text)
	if !unicode.IsLetter(r) || unicode.IsUpper(r) {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}

// capitalizePronouns upper-cases "i" and its contractions when the token has
// a space on both sides.
func capitalizePronouns(text string) string {
	tokens := strings.Split(text, " ")
	if len(tokens) < 3 {
		return text
	}
	changed := false
	for i := 1; i < len(tokens)-1; i++ {
		if repl, ok := pronounForms[tokens[i]]; ok {
			tokens[i] = repl
			changed = true
		}
	}
	if !changed {
		return text
	}
	return strings.Join(tokens, " ")
}
