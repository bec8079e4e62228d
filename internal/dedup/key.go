// Package dedup decides which anime records denote the same title and how a
// set of duplicates collapses into one record. Nothing in this package touches
// storage; the merge engine and the ingester feed it records and act on the
// results.
package dedup

import (
	"strconv"
	"strings"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/naming"
)

// Canonical key prefixes, most authoritative first.
const (
	KeyPrefixMal     = "mal:"
	KeyPrefixAniList = "anilist:"
	KeyPrefixTitle   = "t:"
)

// CanonicalKey derives the identity key of a record: the MyAnimeList id if
// present, else the AniList id, else the base title with season markers
// removed. Every record maps to exactly one key.
func CanonicalKey(r *anime.Record) string {
	switch {
	case r.MalID != nil:
		return KeyPrefixMal + strconv.Itoa(*r.MalID)
	case r.AniListID != nil:
		return KeyPrefixAniList + strconv.Itoa(*r.AniListID)
	default:
		return SeriesKey(r.Title)
	}
}

// SeriesKey is the title-based key shared by every season of a series.
func SeriesKey(title string) string {
	return KeyPrefixTitle + naming.ExtractSeason(title).BaseTitle
}

// keyRank orders keys by authority: catalog ids beat titles.
func keyRank(key string) int {
	switch {
	case strings.HasPrefix(key, KeyPrefixMal):
		return 0
	case strings.HasPrefix(key, KeyPrefixAniList):
		return 1
	default:
		return 2
	}
}

// moreAuthoritative reports whether key a should represent a group over b.
func moreAuthoritative(a, b string) bool {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}
