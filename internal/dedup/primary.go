package dedup

import (
	"strings"

	"github.com/Nomadcxx/animerge/internal/anime"
	"github.com/Nomadcxx/animerge/internal/quality"
)

// SelectPrimary returns the index of the record to keep: the strictly highest
// quality score, then an explicit English title, then an AniList id, then the
// lowest id. Records without ids keep their input order as the last
// tiebreak. Returns -1 for an empty slice.
func SelectPrimary(records []anime.Record) int {
	best := -1
	bestScore := 0
	for i := range records {
		score := quality.ScoreRecord(&records[i])
		if best < 0 || preferPrimary(&records[i], score, &records[best], bestScore) {
			best, bestScore = i, score
		}
	}
	return best
}

// preferPrimary reports whether a (scored sa) beats the current best b.
// Equal records keep the earlier one.
func preferPrimary(a *anime.Record, sa int, b *anime.Record, sb int) bool {
	if sa != sb {
		return sa > sb
	}
	if ea, eb := a.HasEnglishTitle(), b.HasEnglishTitle(); ea != eb {
		return ea
	}
	if la, lb := a.AniListID != nil, b.AniListID != nil; la != lb {
		return la
	}
	return a.ID < b.ID
}

// FillMissing copies fields the primary lacks from the duplicates, in order.
// Values the primary already has are never overwritten. Titles of the
// duplicates that differ from the primary's are kept as alternate titles.
func FillMissing(primary *anime.Record, duplicates []anime.Record) {
	for i := range duplicates {
		d := &duplicates[i]

		if primary.MalID == nil && d.MalID != nil {
			v := *d.MalID
			primary.MalID = &v
		}
		if primary.AniListID == nil && d.AniListID != nil {
			v := *d.AniListID
			primary.AniListID = &v
		}
		if !primary.HasEnglishTitle() && d.HasEnglishTitle() {
			v := *d.TitleEnglish
			primary.TitleEnglish = &v
		}
		if primary.Year == nil && d.Year != nil {
			v := *d.Year
			primary.Year = &v
		}
		if primary.Episodes == nil && d.Episodes != nil {
			v := *d.Episodes
			primary.Episodes = &v
		}
		if primary.TotalEpisodes == nil && d.TotalEpisodes != nil {
			v := *d.TotalEpisodes
			primary.TotalEpisodes = &v
		}
		if !hasValues(primary.Genres) && hasValues(d.Genres) {
			primary.Genres = append([]string(nil), d.Genres...)
		}
		if !hasValues(primary.Studios) && hasValues(d.Studios) {
			primary.Studios = append([]string(nil), d.Studios...)
		}
		if primary.Rating == nil && d.Rating != nil {
			v := *d.Rating
			primary.Rating = &v
		}
		if isBlank(primary.PosterURL) && !isBlank(d.PosterURL) {
			v := *d.PosterURL
			primary.PosterURL = &v
		}
		if isBlank(primary.Description) && !isBlank(d.Description) {
			v := *d.Description
			primary.Description = &v
		}

		for _, t := range d.Titles() {
			addAltTitle(primary, t)
		}
	}
}

func addAltTitle(r *anime.Record, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	for _, existing := range r.Titles() {
		if strings.EqualFold(existing, title) {
			return
		}
	}
	r.AltTitles = append(r.AltTitles, title)
}

func hasValues(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
