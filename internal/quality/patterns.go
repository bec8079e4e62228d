package quality

import (
	"regexp"
	"strings"
)

var (
	// Poster URLs that catalogs serve when no artwork exists.
	placeholderPosterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)no[_-]?image`),
		regexp.MustCompile(`(?i)no[_-]?picture`),
		regexp.MustCompile(`(?i)placeholder`),
		regexp.MustCompile(`(?i)/images/qm_\d+\.gif$`),
		regexp.MustCompile(`(?i)/default\.(jpe?g|png|gif|webp)$`),
		regexp.MustCompile(`(?i)questionmark`),
	}
)

// IsPlaceholderPoster reports whether a poster URL points at a stock
// "no image" graphic rather than real artwork.
func IsPlaceholderPoster(url string) bool {
	url = strings.TrimSpace(url)
	if url == "" {
		return true
	}
	for _, re := range placeholderPosterPatterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
