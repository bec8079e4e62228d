package naming

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// maxInexactSimilarity caps scores for titles that are not equal after
// normalization, so 1.0 always means "same normalized title".
const maxInexactSimilarity = 0.99

// Similarity returns a score in [0,1] for two raw or normalized titles.
// It is 1 only when both titles normalize to the same string; otherwise it is
// the better of Levenshtein similarity and token-set overlap. The function is
// symmetric and reflexive.
func Similarity(a, b string) float64 {
	return NormalizedSimilarity(NormalizeTitle(a), NormalizeTitle(b))
}

// NormalizedSimilarity is Similarity for titles already passed through
// NormalizeTitle. Callers comparing many pairs normalize once up front.
func NormalizedSimilarity(na, nb string) float64 {
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}

	score := tokenOverlap(na, nb)
	if lev, err := edlib.StringsSimilarity(na, nb, edlib.Levenshtein); err == nil && float64(lev) > score {
		score = float64(lev)
	}

	if score > maxInexactSimilarity {
		score = maxInexactSimilarity
	}
	if score < 0 {
		score = 0
	}
	return score
}

// BestSimilarity returns the highest Similarity between any pair of title
// variants.
func BestSimilarity(as, bs []string) float64 {
	best := 0.0
	for _, a := range as {
		for _, b := range bs {
			if s := Similarity(a, b); s > best {
				best = s
				if best == 1 {
					return best
				}
			}
		}
	}
	return best
}

// tokenOverlap is the Jaccard index of the two token sets.
func tokenOverlap(na, nb string) float64 {
	ta, tb := tokenSet(na), tokenSet(nb)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for tok := range ta {
		if tb[tok] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func tokenSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		set[tok] = true
	}
	return set
}

// SharesSignificantToken reports whether two titles have a normalized token
// of three or more characters in common, ignoring English function words and
// romaji particles.
func SharesSignificantToken(a, b string) bool {
	tb := tokenSet(NormalizeTitle(b))
	for _, tok := range Tokens(a) {
		if len([]rune(tok)) < 3 || englishFunctionWords[tok] || romajiParticles[tok] {
			continue
		}
		if tb[tok] {
			return true
		}
	}
	return false
}
