package naming

import "regexp"

// romanizedThreshold is the minimum heuristic score for IsRomanized.
const romanizedThreshold = 3

// Japanese particles. Only counted when they sit between two other tokens,
// which is where they occur in romanized titles ("Boku no Hero Academia").
var romajiParticles = map[string]bool{
	"no": true, "wa": true, "ga": true, "wo": true,
	"ni": true, "to": true, "mo": true, "de": true,
}

// Words that show up constantly in romanized anime titles.
var romajiVocabulary = map[string]bool{
	"boku": true, "ore": true, "watashi": true, "kimi": true, "anata": true,
	"shoujo": true, "shojo": true, "shounen": true, "shonen": true,
	"monogatari": true, "kanojo": true, "sekai": true, "isekai": true,
	"tensei": true, "maou": true, "yuusha": true, "hime": true,
	"senpai": true, "sensei": true, "gakuen": true, "mahou": true,
	"densetsu": true, "shingeki": true, "kyojin": true, "kimetsu": true,
	"yaiba": true, "koi": true, "tachi": true, "desu": true, "dake": true,
	"nai": true, "kara": true, "made": true, "shite": true, "suru": true,
	"kun": true, "chan": true, "sama": true, "tan": true, "na": true,
	"jujutsu": true, "kaisen": true, "oshi": true, "ko": true, "seishun": true,
	"buta": true, "yarou": true, "yume": true, "miru": true, "tonari": true,
	"kaze": true, "sora": true, "hoshi": true, "tenki": true,
}

// English function words; their presence argues for a localized title.
var englishFunctionWords = map[string]bool{
	"the": true, "of": true, "and": true, "a": true, "an": true,
	"in": true, "on": true, "my": true, "your": true, "is": true,
	"with": true, "for": true, "from": true, "at": true, "by": true,
}

// A token built only from Hepburn syllables.
var hepburnTokenRegex = regexp.MustCompile(`^(?:(?:ky|gy|sh|ch|ny|hy|my|ry|by|py|ts|j|[kgsztdnhbpmyrwf])?[aiueo]|n)+$`)

// IsRomanized reports whether a title looks like a romanized Japanese title
// rather than a localized (English) one. Heuristic; use only as a secondary
// matching signal.
func IsRomanized(title string) bool {
	return romanizationScore(Tokens(title)) >= romanizedThreshold
}

func romanizationScore(tokens []string) int {
	score := 0
	for i, tok := range tokens {
		switch {
		case englishFunctionWords[tok]:
			score -= 2
		case romajiParticles[tok]:
			if i > 0 && i < len(tokens)-1 {
				score += 2
			}
		case romajiVocabulary[tok]:
			score += 2
		case len(tok) >= 3 && hepburnTokenRegex.MatchString(tok):
			score++
		}
	}
	return score
}
