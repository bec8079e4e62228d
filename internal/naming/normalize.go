// Package naming canonicalizes anime titles: normalization, season marker
// extraction, romanization detection and title similarity. Everything here is
// pure and safe to call on arbitrary input.
package naming

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Parenthetical / bracketed qualifiers: "(TV)", "(2011)", "[BD]", "【...】"
	qualifierRegex = regexp.MustCompile(`\([^()]*\)|\[[^\[\]]*\]|【[^【】]*】`)

	// Season and part markers, matched on lowercased text.
	seasonMarkerRegexes = []*regexp.Regexp{
		regexp.MustCompile(`\bseason\s*\d+\b`),
		regexp.MustCompile(`\b\d+(?:st|nd|rd|th)\s+season\b`),
		regexp.MustCompile(`\bs\d{1,2}\b`),
		regexp.MustCompile(`\b(?:part|cour)\s*(?:\d+|[ivx]+)\b`),
		regexp.MustCompile(`\b(?:the\s+)?final\s+season\b`),
	}

	nonWordRegex       = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	collapseSpaceRegex = regexp.MustCompile(`\s+`)

	// NFD, drop combining marks, recompose.
	diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// NormalizeTitle converts a raw title to its canonical matching form.
//
//	"Shingeki no Kyojin Season 3 Part 2" -> "shingeki no kyojin"
//	"Pokémon: The Series (TV)"          -> "pokemon the series"
//	"Naruto (TV)"                       -> "naruto"
//
// The result is lowercase, diacritic-free, punctuation-free and
// single-spaced. NormalizeTitle is idempotent.
func NormalizeTitle(title string) string {
	out := normalizePass(title)
	for {
		// Later passes only remove markers, so the string shrinks until it
		// reaches a fixpoint.
		next := normalizePass(out)
		if next == out || len(next) > len(out) {
			return out
		}
		out = next
	}
}

func normalizePass(title string) string {
	s := foldDiacritics(title)
	s = strings.ToLower(s)
	s = qualifierRegex.ReplaceAllString(s, " ")
	s = stripPunctuation(s)
	s = stripSeasonMarkers(s)
	return collapseSpaces(s)
}

// stripPunctuation replaces everything but letters and digits with spaces.
// Apostrophes are dropped rather than spaced so "Jojo's" stays one token.
func stripPunctuation(s string) string {
	s = strings.NewReplacer("'", "", "’", "", "`", "").Replace(s)
	return nonWordRegex.ReplaceAllString(s, " ")
}

func stripSeasonMarkers(s string) string {
	for _, re := range seasonMarkerRegexes {
		s = re.ReplaceAllString(s, " ")
	}
	return s
}

func foldDiacritics(s string) string {
	out, _, err := transform.String(diacriticFolder, s)
	if err != nil {
		return s
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(collapseSpaceRegex.ReplaceAllString(s, " "))
}

// Tokens splits a title into normalized tokens.
func Tokens(title string) []string {
	return strings.Fields(NormalizeTitle(title))
}
