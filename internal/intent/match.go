package intent

import (
	"strings"
	"unicode/utf8"
)

// maxEditDistance bounds fuzzy matching by stem length: short stems must
// match exactly, mid-length stems tolerate one edit, long stems two.
func maxEditDistance(length int) int {
	switch {
	case length < 4:
		return 0
	case length < 7:
		return 1
	default:
		return 2
	}
}

// matchToken scores one token against one stem in [0,1]. Exact matches and
// inflection-suffix prefix matches score 1; fuzzy matches score down with
// edit distance; no match scores 0.
func matchToken(token, stem string) float64 {
	if token == stem {
		return 1
	}

	tokenLen := utf8.RuneCountInString(token)
	stemLen := utf8.RuneCountInString(stem)

	// Inflection suffixes: кухн matches кухня, кухне, кухни. Prefix
	// comparison is over bytes; a rune prefix is always a byte prefix
	// in UTF-8, and HasPrefix never slices past a short token.
	if tokenLen > stemLen && tokenLen-stemLen <= 3 && strings.HasPrefix(token, stem) {
		return 1
	}

	maxDist := maxEditDistance(stemLen)
	if maxDist == 0 {
		return 0
	}
	dist := levenshtein(token, stem)
	if dist > maxDist {
		return 0
	}
	return 1 - float64(dist)/float64(stemLen)
}

// bestMatch returns the best score of any token against any stem.
func bestMatch(tokens []string, stems []string) float64 {
	best := 0.0
	for _, t := range tokens {
		for _, s := range stems {
			if score := matchToken(t, s); score > best {
				best = score
			}
		}
	}
	return best
}

// levenshtein computes edit distance over runes with a two-row table.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
