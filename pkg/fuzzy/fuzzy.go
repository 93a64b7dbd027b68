package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance calculates the edit distance between two strings
// This measures how many single-character edits (insertions, deletions, or substitutions)
// are required to change one string into another
func LevenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Two rows are enough: prev holds row i-1, curr row i
	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// Similarity returns 1 - distance/maxLen over already-normalized strings.
func Similarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// legalSuffixes are dropped when comparing company names.
var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true, "co": true, "company": true, "gmbh": true,
	"ag": true, "sa": true, "sas": true, "bv": true, "plc": true, "pty": true,
	"group": true, "holdings": true, "the": true,
}

// NormalizeCompany lowercases, folds accents, drops punctuation and legal
// suffixes ("Acme, Inc." -> "acme").
func NormalizeCompany(name string) string {
	s := foldAccents(strings.ToLower(name))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !legalSuffixes[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// CompanySimilarity scores how likely two company names refer to the same
// organization, from 0 (unrelated) to 1 (same after normalization).
func CompanySimilarity(a, b string) float64 {
	na, nb := NormalizeCompany(a), NormalizeCompany(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	// "open ai" vs "openai"
	ca, cb := strings.ReplaceAll(na, " ", ""), strings.ReplaceAll(nb, " ", "")
	if ca == cb {
		return 1
	}

	score := Similarity(ca, cb)

	// One name being a whole-word prefix of the other ("acme" vs "acme robotics")
	// is strong evidence, but only for names long enough to be distinctive.
	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) >= 4 && strings.HasPrefix(longer+" ", shorter+" ") {
		score = max(score, 0.9)
	}

	return score
}

// FuzzyMatch checks if query fuzzy-matches any word of text within a given
// edit-distance threshold
func FuzzyMatch(query, text string, threshold int) bool {
	query = normalizeString(query)
	text = normalizeString(text)
	if query == "" {
		return false
	}

	if strings.Contains(text, query) {
		return true
	}

	for _, word := range strings.Fields(text) {
		if LevenshteinDistance(query, word) <= threshold {
			return true
		}
	}
	return false
}

// normalizeString converts to lowercase, folds accents and collapses whitespace
func normalizeString(s string) string {
	s = foldAccents(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}

// foldAccents removes diacritical marks ("Société" -> "Societe").
// A transformer chain is stateful, so one is built per call.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
