package intent

import (
	"strings"
	"unicode"
)

// foldRunes maps diacritic variants to their base letters. Russian ё folds
// to е because both spellings occur in typed input; the Latin entries cover
// phone-keyboard autocorrect artefacts.
var foldRunes = map[rune]rune{
	'ё': 'е',
	'à': 'a', 'á': 'a', 'â': 'a', 'ä': 'a',
	'è': 'e', 'é': 'e', 'ê': 'e', 'ë': 'e',
	'ì': 'i', 'í': 'i', 'î': 'i', 'ï': 'i',
	'ò': 'o', 'ó': 'o', 'ô': 'o', 'ö': 'o',
	'ù': 'u', 'ú': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

// fillerWords are dropped before matching. They carry no command meaning in
// either locale.
var fillerWords = map[string]struct{}{
	// English
	"the": {}, "a": {}, "an": {}, "in": {}, "at": {}, "to": {}, "of": {},
	"please": {}, "can": {}, "could": {}, "you": {}, "my": {}, "turn": {},
	"switch": {}, "set": {}, "make": {}, "put": {},
	// Russian
	"в": {}, "на": {}, "и": {}, "а": {}, "бы": {}, "ли": {}, "же": {},
	"пожалуйста": {}, "мне": {}, "ты": {}, "сделай": {}, "поставь": {},
}

// fold lowercases one rune and collapses diacritic variants.
func fold(r rune) rune {
	r = unicode.ToLower(r)
	if base, ok := foldRunes[r]; ok {
		return base
	}
	return r
}

// Normalize lowercases and diacritic-folds text, replaces punctuation with
// spaces and drops filler words. The percent sign survives so brightness
// tokens like "50%" stay intact.
func Normalize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		r = fold(r)
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '%':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, f := range fields {
		if _, filler := fillerWords[f]; filler {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
