package naming

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SeasonInfo is the result of splitting a title into base title and season.
type SeasonInfo struct {
	BaseTitle string
	Season    *int
	Label     string
}

var (
	seasonNumberRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bseason\s*(\d+)\b`),
		regexp.MustCompile(`(?i)\b(\d+)(?:st|nd|rd|th)\s+season\b`),
		regexp.MustCompile(`(?i)\bs(\d{1,2})\b`),
	}
	partRegex        = regexp.MustCompile(`(?i)\b(part|cour)\s*(\d+|[ivx]+)\b`)
	finalSeasonRegex = regexp.MustCompile(`(?i)\b(?:the\s+)?final\s+season\b`)
)

// continuationLabels are subtitles that historically denote a sequel arc of
// the same base series. Matched against trailing normalized tokens, longest
// first.
var continuationLabels = []struct {
	tokens string
	label  string
}{
	{"the final chapters", "The Final Chapters"},
	{"final chapters", "The Final Chapters"},
	{"kanketsu hen", "Kanketsu-hen"},
	{"kanketsuhen", "Kanketsu-hen"},
	{"zoku hen", "Zoku-hen"},
	{"shippuuden", "Shippuden"},
	{"shippuden", "Shippuden"},
	{"brotherhood", "Brotherhood"},
	{"zoku", "Zoku"},
	{"kai", "Kai"},
}

// ExtractSeason splits a raw title into its base title, explicit season
// number and continuation label.
//
//	"Attack on Titan Season 3"   -> {"attack on titan", 3, ""}
//	"Naruto Shippuden"           -> {"naruto", nil, "Shippuden"}
//	"Kaguya-sama 2nd Season"     -> {"kaguya sama", 2, ""}
func ExtractSeason(title string) SeasonInfo {
	info := SeasonInfo{}

	for _, re := range seasonNumberRegexes {
		if m := re.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				info.Season = &n
				break
			}
		}
	}

	if info.Season == nil {
		if m := partRegex.FindStringSubmatch(title); m != nil {
			// Casers are stateful; build one per call.
			info.Label = cases.Title(language.English).String(strings.ToLower(m[1])) + " " + strings.ToUpper(m[2])
		} else if finalSeasonRegex.MatchString(title) {
			info.Label = "Final Season"
		}
	}

	base := NormalizeTitle(title)
	if stripped, label := stripContinuationLabel(base); label != "" {
		base = stripped
		if info.Label == "" {
			info.Label = label
		}
	}
	info.BaseTitle = base
	return info
}

// stripContinuationLabel removes a trailing continuation label from an
// already-normalized title. A label is never stripped when it is the whole
// title.
func stripContinuationLabel(normalized string) (string, string) {
	for _, cl := range continuationLabels {
		if normalized == cl.tokens {
			continue
		}
		suffix := " " + cl.tokens
		if strings.HasSuffix(normalized, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(normalized, suffix)), cl.label
		}
	}
	return normalized, ""
}

// SameSeason reports whether two SeasonInfo values denote the same season
// identity (same number and label).
func SameSeason(a, b SeasonInfo) bool {
	if (a.Season == nil) != (b.Season == nil) {
		return false
	}
	if a.Season != nil && *a.Season != *b.Season {
		return false
	}
	return a.Label == b.Label
}
